package grpc

import (
	"context"
	"net"

	"github.com/TomasB/geoheader/internal/data"
	"github.com/TomasB/geoheader/internal/extract"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// forwardedForKey is the metadata key carrying the client address chain.
const forwardedForKey = "x-forwarded-for"

// Handler implements GeoServiceServer.
type Handler struct {
	geo    data.Resolver
	format *extract.Formatter
}

// NewHandler creates a new gRPC handler.
func NewHandler(geo data.Resolver, format *extract.Formatter) *Handler {
	if format == nil {
		format = extract.NewFormatter(data.DefaultFallbackCountry, extract.MaxLen)
	}
	return &Handler{geo: geo, format: format}
}

// Lookup returns the record of the requested address. An empty request
// resolves the caller's own address.
func (h *Handler) Lookup(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	addr := h.address(ctx, req.GetValue())

	record := h.geo.Lookup(addr)
	if record == nil {
		return &structpb.Struct{}, nil
	}

	out, err := structpb.NewStruct(map[string]any{
		"city":    record.City,
		"country": record.CountryCode,
		"lat":     record.Latitude,
		"lon":     record.Longitude,
		"ip":      record.SourceIP,
		"netmask": record.Netmask,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode record")
	}
	return out, nil
}

// LookupCountry returns the country of the requested address.
func (h *Handler) LookupCountry(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	addr := h.address(ctx, req.GetValue())
	return wrapperspb.String(h.geo.LookupCountry(addr)), nil
}

// Format renders the lookup of the "ip" field in the "mode" field's encoding.
func (h *Handler) Format(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	fields := req.GetFields()

	mode := extract.ModeKeyValue
	if name := fields["mode"].GetStringValue(); name != "" {
		var err error
		if mode, err = extract.ParseMode(name); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
	}

	addr := h.address(ctx, fields["ip"].GetStringValue())
	return wrapperspb.String(h.format.Format(addr, h.geo.Lookup(addr), mode)), nil
}

// address returns explicit, or else the first forwarded-for metadata entry,
// or else the peer address.
func (h *Handler) address(ctx context.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}

	var (
		xff string
		ok  bool
	)
	if md, found := metadata.FromIncomingContext(ctx); found {
		if values := md.Get(forwardedForKey); len(values) > 0 {
			xff, ok = values[0], true
		}
	}
	return h.format.ResolveAddress(peerAddr(ctx), xff, ok)
}

func peerAddr(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
