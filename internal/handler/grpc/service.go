package grpc

import (
	"context"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "geoheader.v1.GeoService"

const (
	methodLookup        = "/" + ServiceName + "/Lookup"
	methodLookupCountry = "/" + ServiceName + "/LookupCountry"
	methodFormat        = "/" + ServiceName + "/Format"
)

// GeoServiceServer is the server API for the geo service.
type GeoServiceServer interface {
	// Lookup returns the record fields for an address, or an empty struct.
	Lookup(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// LookupCountry returns the country code for an address, or the fallback.
	LookupCountry(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	// Format renders the lookup of {ip, mode} as the header value would be.
	Format(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)
}

// ServiceDesc describes GeoService over protobuf well-known types.
var ServiceDesc = gogrpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GeoServiceServer)(nil),
	Methods: []gogrpc.MethodDesc{
		{MethodName: "Lookup", Handler: lookupHandler},
		{MethodName: "LookupCountry", Handler: lookupCountryHandler},
		{MethodName: "Format", Handler: formatHandler},
	},
	Streams:  []gogrpc.StreamDesc{},
	Metadata: "geoheader/v1/geo.proto",
}

// RegisterGeoServiceServer registers srv on s.
func RegisterGeoServiceServer(s gogrpc.ServiceRegistrar, srv GeoServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func lookupHandler(srv any, ctx context.Context, dec func(any) error, interceptor gogrpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GeoServiceServer).Lookup(ctx, in)
	}
	info := &gogrpc.UnaryServerInfo{Server: srv, FullMethod: methodLookup}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(GeoServiceServer).Lookup(ctx, req.(*wrapperspb.StringValue))
	})
}

func lookupCountryHandler(srv any, ctx context.Context, dec func(any) error, interceptor gogrpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GeoServiceServer).LookupCountry(ctx, in)
	}
	info := &gogrpc.UnaryServerInfo{Server: srv, FullMethod: methodLookupCountry}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(GeoServiceServer).LookupCountry(ctx, req.(*wrapperspb.StringValue))
	})
}

func formatHandler(srv any, ctx context.Context, dec func(any) error, interceptor gogrpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GeoServiceServer).Format(ctx, in)
	}
	info := &gogrpc.UnaryServerInfo{Server: srv, FullMethod: methodFormat}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(GeoServiceServer).Format(ctx, req.(*structpb.Struct))
	})
}

// Client calls GeoService over a client connection.
type Client struct {
	cc gogrpc.ClientConnInterface
}

// NewClient creates a GeoService client.
func NewClient(cc gogrpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Lookup calls GeoService.Lookup.
func (c *Client) Lookup(ctx context.Context, in *wrapperspb.StringValue, opts ...gogrpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodLookup, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// LookupCountry calls GeoService.LookupCountry.
func (c *Client) LookupCountry(ctx context.Context, in *wrapperspb.StringValue, opts ...gogrpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, methodLookupCountry, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Format calls GeoService.Format.
func (c *Client) Format(ctx context.Context, in *structpb.Struct, opts ...gogrpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, methodFormat, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
