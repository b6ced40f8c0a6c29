package usb

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/gousb"
	"github.com/stretchr/testify/assert"

	"github.com/moffa90/go-mca8000d/mca"
)

func TestEndpointNumber(t *testing.T) {
	assert.Equal(t, 2, endpointNumber(mca.OutEndpoint))
	assert.Equal(t, 1, endpointNumber(mca.InEndpoint))
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantTimeout bool
	}{
		{"transfer timed out", gousb.TransferTimedOut, true},
		{"transfer cancelled", gousb.TransferCancelled, true},
		{"libusb timeout", gousb.ErrorTimeout, true},
		{"context deadline", fmt.Errorf("read: %w", context.DeadlineExceeded), true},
		{"stall", gousb.TransferStall, false},
		{"no device", gousb.ErrorNoDevice, false},
		{"other", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapError(tt.err)
			assert.Equal(t, tt.wantTimeout, errors.Is(err, mca.ErrTransportTimeout))
			assert.Equal(t, tt.wantTimeout, mca.IsTransient(err))
		})
	}
}

func TestWithIDs(t *testing.T) {
	cfg := Config{VendorID: mca.VendorID, ProductID: mca.ProductID}
	WithIDs(0x1234, 0x5678)(&cfg)
	assert.Equal(t, Config{VendorID: 0x1234, ProductID: 0x5678}, cfg)
}
