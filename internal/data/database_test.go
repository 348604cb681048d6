package data

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TomasB/geoheader/internal/mmdbtest"
)

// fakeReader serves records from a map keyed by IP string.
type fakeReader struct {
	records map[string]Record
	edition Edition
	err     error
	closed  atomic.Bool
}

func (f *fakeReader) Lookup(ip net.IP) (*Record, error) {
	if f.closed.Load() {
		return nil, errors.New("lookup on closed reader")
	}
	if f.err != nil {
		return nil, f.err
	}
	rec, ok := f.records[ip.String()]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (f *fakeReader) Edition() Edition { return f.edition }

func (f *fakeReader) Close() error {
	f.closed.Store(true)
	return nil
}

func countingOpener(r Reader, err error, opens *atomic.Int32) Opener {
	return func() (Reader, error) {
		opens.Add(1)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

func newFake() *fakeReader {
	return &fakeReader{
		edition: EditionCity,
		records: map[string]Record{
			"8.8.8.8": {CountryCode: "US", City: "Mountain View", Latitude: 37.4, Longitude: -122.1, Netmask: 24},
			"2.125.160.216": {CountryCode: "GB", City: "Boxford", Netmask: 24},
		},
	}
}

func TestDatabase_LookupKnown(t *testing.T) {
	var opens atomic.Int32
	db := NewDatabase(countingOpener(newFake(), nil, &opens))

	record := db.Lookup("8.8.8.8")
	require.NotNil(t, record)
	assert.Equal(t, "US", record.CountryCode)
	assert.Equal(t, "8.8.8.8", record.SourceIP)
	assert.Equal(t, 24, record.Netmask)
	assert.Equal(t, EditionCity, db.Edition())
}

func TestDatabase_LookupUnknownAndMalformed(t *testing.T) {
	var opens atomic.Int32
	db := NewDatabase(countingOpener(newFake(), nil, &opens))

	assert.Nil(t, db.Lookup("1.1.1.1"))
	assert.Nil(t, db.Lookup("not-an-ip"))
	assert.Nil(t, db.Lookup(""))
	assert.Equal(t, int32(1), opens.Load())
}

func TestDatabase_LookupFreshRecords(t *testing.T) {
	var opens atomic.Int32
	db := NewDatabase(countingOpener(newFake(), nil, &opens))

	first := db.Lookup("8.8.8.8")
	first.City = "changed"
	second := db.Lookup("8.8.8.8")
	assert.Equal(t, "Mountain View", second.City)
}

func TestDatabase_ReaderError(t *testing.T) {
	fake := newFake()
	fake.err = fmt.Errorf("corrupt node")
	var opens atomic.Int32
	db := NewDatabase(countingOpener(fake, nil, &opens))

	assert.Nil(t, db.Lookup("8.8.8.8"))
	assert.NoError(t, db.Err())
}

func TestDatabase_OpenFailureIsSticky(t *testing.T) {
	var opens atomic.Int32
	db := NewDatabase(countingOpener(nil, fmt.Errorf("no such file"), &opens))

	err := db.EnsureOpen()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))

	for i := 0; i < 5; i++ {
		assert.Nil(t, db.Lookup("8.8.8.8"))
		assert.ErrorIs(t, db.EnsureOpen(), ErrUnavailable)
	}
	assert.Equal(t, int32(1), opens.Load())
	assert.ErrorIs(t, db.Err(), ErrUnavailable)
}

func TestDatabase_NilOpener(t *testing.T) {
	db := NewDatabase(nil)
	assert.ErrorIs(t, db.EnsureOpen(), ErrUnavailable)
	assert.Equal(t, DefaultFallbackCountry, db.LookupCountry("8.8.8.8"))
}

func TestDatabase_ErrDoesNotOpen(t *testing.T) {
	var opens atomic.Int32
	db := NewDatabase(countingOpener(newFake(), nil, &opens))

	assert.NoError(t, db.Err())
	assert.Equal(t, int32(0), opens.Load())
}

func TestDatabase_LookupCountry(t *testing.T) {
	var opens atomic.Int32
	db := NewDatabase(countingOpener(newFake(), nil, &opens), WithFallbackCountry("A1"))

	assert.Equal(t, "US", db.LookupCountry("8.8.8.8"))
	assert.Equal(t, "A1", db.LookupCountry("1.1.1.1"))
	assert.Equal(t, "A1", db.LookupCountry("garbage"))
	assert.Equal(t, "A1", db.Fallback())
}

func TestDatabase_Close(t *testing.T) {
	fake := newFake()
	var opens atomic.Int32
	db := NewDatabase(countingOpener(fake, nil, &opens))

	require.NotNil(t, db.Lookup("8.8.8.8"))
	require.NoError(t, db.Close())
	assert.True(t, fake.closed.Load())

	assert.Nil(t, db.Lookup("8.8.8.8"))
	assert.ErrorIs(t, db.EnsureOpen(), ErrClosed)
	assert.ErrorIs(t, db.Err(), ErrClosed)
	assert.NoError(t, db.Close())
	assert.Equal(t, int32(1), opens.Load())
}

func TestDatabase_ConcurrentLookupsOpenOnce(t *testing.T) {
	var opens atomic.Int32
	db := NewDatabase(countingOpener(newFake(), nil, &opens))

	addrs := []string{"8.8.8.8", "1.1.1.1", "2.125.160.216", "bogus"}
	want := make(map[string]string, len(addrs))
	for _, a := range addrs {
		want[a] = NewDatabase(countingOpener(newFake(), nil, new(atomic.Int32))).LookupCountry(a)
	}

	var wg sync.WaitGroup
	got := make([]string, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = db.LookupCountry(addrs[i%len(addrs)])
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), opens.Load())
	for i, country := range got {
		assert.Equal(t, want[addrs[i%len(addrs)]], country, "lookup %d", i)
	}
}

func TestDatabase_WithMmdb(t *testing.T) {
	db := NewDatabase(MmdbOpener(mmdbtest.WriteCity(t), true))
	defer db.Close()

	record := db.Lookup("2.125.160.216")
	require.NotNil(t, record)
	assert.Equal(t, "GB", record.CountryCode)
	assert.Equal(t, "Boxford", record.City)
	assert.Equal(t, "2.125.160.216", record.SourceIP)
	assert.Nil(t, db.Lookup("1.1.1.1"))
}
