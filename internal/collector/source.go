package collector

import (
	"context"

	"github.com/seafront-labs/aquamon/internal/dps"
	"github.com/seafront-labs/aquamon/internal/tuya"
)

// Source produces one cycle's worth of raw data points per call.
type Source interface {
	Poll(ctx context.Context) ([]dps.RawDataPoint, error)
}

// DeviceSource adapts the device client into a Source, carrying the
// session between polls so a healthy connection is reused.
//
// Not safe for concurrent use; the scheduler is its only caller.
type DeviceSource struct {
	client *tuya.Client
	sess   *tuya.Session
}

// NewDeviceSource wraps a device client.
func NewDeviceSource(client *tuya.Client) *DeviceSource {
	return &DeviceSource{client: client}
}

// Poll performs one device status query.
func (d *DeviceSource) Poll(ctx context.Context) ([]dps.RawDataPoint, error) {
	sess, points, err := d.client.Poll(ctx, d.sess)
	d.sess = sess
	return points, err
}

// Close releases the current session, if any.
func (d *DeviceSource) Close() error {
	err := d.sess.Close()
	d.sess = nil
	return err
}
