// Package usb binds mca.Transport to an MCA8000D on USB through libusb.
package usb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/gousb"

	"github.com/moffa90/go-mca8000d/mca"
)

// Config selects the device to open.
type Config struct {
	VendorID  uint16
	ProductID uint16
}

// Option is a functional option for Open.
type Option func(*Config)

// WithIDs overrides the vendor and product identifiers.
func WithIDs(vendorID, productID uint16) Option {
	return func(c *Config) {
		c.VendorID = vendorID
		c.ProductID = productID
	}
}

// Transport is an open MCA8000D on the USB bus.
type Transport struct {
	mu        sync.Mutex
	ctx       *gousb.Context
	dev       *gousb.Device
	intf      *gousb.Interface
	done      func()
	outs      map[int]*gousb.OutEndpoint
	ins       map[int]*gousb.InEndpoint
	closeOnce sync.Once
}

// Open claims the first device matching the configured vendor and product
// IDs. It fails with mca.ErrDeviceNotFound when none is attached.
//
// Example:
//
//	t, err := usb.Open()
//	if errors.Is(err, mca.ErrDeviceNotFound) {
//	    log.Fatal("plug in the MCA8000D")
//	}
func Open(opts ...Option) (*Transport, error) {
	cfg := Config{VendorID: mca.VendorID, ProductID: mca.ProductID}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx := gousb.NewContext()
	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(cfg.VendorID), gousb.ID(cfg.ProductID))
	if err != nil {
		_ = ctx.Close()
		return nil, fmt.Errorf("open %04x:%04x: %w", cfg.VendorID, cfg.ProductID, err)
	}
	if dev == nil {
		_ = ctx.Close()
		return nil, fmt.Errorf("%w: %04x:%04x", mca.ErrDeviceNotFound, cfg.VendorID, cfg.ProductID)
	}

	if err := dev.SetAutoDetach(true); err != nil {
		_ = dev.Close()
		_ = ctx.Close()
		return nil, fmt.Errorf("set auto detach: %w", err)
	}

	intf, done, err := dev.DefaultInterface()
	if err != nil {
		_ = dev.Close()
		_ = ctx.Close()
		return nil, fmt.Errorf("claim interface: %w", err)
	}

	return &Transport{
		ctx:  ctx,
		dev:  dev,
		intf: intf,
		done: done,
		outs: make(map[int]*gousb.OutEndpoint),
		ins:  make(map[int]*gousb.InEndpoint),
	}, nil
}

// Write sends data to the OUT endpoint address endpoint.
func (t *Transport) Write(endpoint int, data []byte, timeout time.Duration) (int, error) {
	ep, err := t.outEndpoint(endpoint)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	n, err := ep.WriteContext(ctx, data)
	if err != nil {
		return n, mapError(err)
	}
	return n, nil
}

// Read performs one bulk transfer of at most maxLen bytes from the IN
// endpoint address endpoint.
func (t *Transport) Read(endpoint int, maxLen int, timeout time.Duration) ([]byte, error) {
	ep, err := t.inEndpoint(endpoint)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	buf := make([]byte, maxLen)
	n, err := ep.ReadContext(ctx, buf)
	if err != nil {
		return nil, mapError(err)
	}
	return buf[:n], nil
}

// Reset performs a USB port reset.
func (t *Transport) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dev.Reset()
}

// Close releases the interface, the device and the libusb context.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.done()
		err = errors.Join(t.dev.Close(), t.ctx.Close())
	})
	return err
}

func (t *Transport) outEndpoint(addr int) (*gousb.OutEndpoint, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ep, ok := t.outs[addr]; ok {
		return ep, nil
	}
	ep, err := t.intf.OutEndpoint(endpointNumber(addr))
	if err != nil {
		return nil, fmt.Errorf("out endpoint 0x%02x: %w", addr, err)
	}
	t.outs[addr] = ep
	return ep, nil
}

func (t *Transport) inEndpoint(addr int) (*gousb.InEndpoint, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ep, ok := t.ins[addr]; ok {
		return ep, nil
	}
	ep, err := t.intf.InEndpoint(endpointNumber(addr))
	if err != nil {
		return nil, fmt.Errorf("in endpoint 0x%02x: %w", addr, err)
	}
	t.ins[addr] = ep
	return ep, nil
}

// endpointNumber strips the direction bit from an endpoint address.
func endpointNumber(addr int) int {
	return addr & 0x0f
}

// mapError reports libusb timeouts as mca.ErrTransportTimeout.
func mapError(err error) error {
	if isTimeout(err) {
		return fmt.Errorf("%w: %v", mca.ErrTransportTimeout, err)
	}
	return err
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, gousb.ErrorTimeout) ||
		errors.Is(err, gousb.TransferTimedOut) ||
		errors.Is(err, gousb.TransferCancelled)
}
