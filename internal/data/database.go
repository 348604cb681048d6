package data

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
)

// DefaultFallbackCountry is a user-assigned ISO-3166 code that is never
// allocated to a real country.
const DefaultFallbackCountry = "XX"

// Database owns a lazily opened dataset and serializes all access to it.
type Database struct {
	mu     sync.Mutex
	open   Opener
	reader Reader
	err    error
	closed bool

	logger   *slog.Logger
	fallback string
}

// Option configures a Database.
type Option func(*Database)

// WithLogger sets the logger used to report open failures.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Database) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithFallbackCountry sets the code LookupCountry returns when nothing matches.
func WithFallbackCountry(code string) Option {
	return func(d *Database) {
		d.fallback = code
	}
}

// NewDatabase creates a Database that opens its dataset through open on first use.
func NewDatabase(open Opener, opts ...Option) *Database {
	d := &Database{
		open:     open,
		logger:   slog.Default(),
		fallback: DefaultFallbackCountry,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// EnsureOpen opens the dataset if no attempt has been made yet.
// A failed attempt is remembered and never retried.
func (d *Database) EnsureOpen() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ensureOpenLocked()
}

func (d *Database) ensureOpenLocked() error {
	if d.closed {
		return ErrClosed
	}
	if d.reader != nil {
		return nil
	}
	if d.err != nil {
		return d.err
	}

	if d.open == nil {
		d.err = fmt.Errorf("%w: no dataset configured", ErrUnavailable)
	} else if reader, err := d.open(); err != nil {
		d.err = fmt.Errorf("%w: %w", ErrUnavailable, err)
	} else if reader == nil {
		d.err = fmt.Errorf("%w: opener returned no reader", ErrUnavailable)
	} else {
		d.reader = reader
		d.logger.Debug("geo database opened", "edition", reader.Edition().String())
		return nil
	}

	d.logger.Error("failed to open geo database, serving without geolocation", "error", d.err)
	return d.err
}

// Lookup returns the record for addr, or nil when the database is unavailable,
// addr is not an IP literal, or the dataset has no matching network.
func (d *Database) Lookup(addr string) *Record {
	ip := net.ParseIP(addr)

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureOpenLocked(); err != nil {
		return nil
	}
	if ip == nil {
		return nil
	}

	record, err := d.reader.Lookup(ip)
	if err != nil {
		d.logger.Debug("geo lookup failed", "ip", addr, "error", err)
		return nil
	}
	if record == nil {
		return nil
	}
	record.SourceIP = addr
	return record
}

// LookupCountry returns the country code for addr, or the fallback code when
// it cannot be resolved.
func (d *Database) LookupCountry(addr string) string {
	record := d.Lookup(addr)
	if record == nil || record.CountryCode == "" {
		return d.fallback
	}
	return record.CountryCode
}

// Fallback returns the configured fallback country code.
func (d *Database) Fallback() string {
	return d.fallback
}

// Err returns the sticky open error without triggering an open.
func (d *Database) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	return d.err
}

// Edition reports the edition of the open dataset, defaulting to country.
func (d *Database) Edition() Edition {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.reader == nil {
		return EditionCountry
	}
	return d.reader.Edition()
}

// Close releases the dataset. The database is never reopened afterwards.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	if d.reader == nil {
		return nil
	}
	err := d.reader.Close()
	d.reader = nil
	return err
}
