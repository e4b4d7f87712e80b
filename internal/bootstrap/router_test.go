package bootstrap

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"

	"github.com/streetlight/gwnode/internal/ctlerr"
	"github.com/streetlight/gwnode/internal/gwqueue"
	"github.com/streetlight/gwnode/internal/radio"
	"github.com/streetlight/gwnode/internal/store"
)

type fakeTransport struct {
	deviceSubs  []string
	gatewaySubs []string
	registers   []DeviceRegister
	statuses    []GatewayStatus
}

func (f *fakeTransport) SubscribeDeviceScoped(deviceId string) error {
	f.deviceSubs = append(f.deviceSubs, deviceId)
	return nil
}
func (f *fakeTransport) SubscribeGatewayScoped(gatewayId string) error {
	f.gatewaySubs = append(f.gatewaySubs, gatewayId)
	return nil
}
func (f *fakeTransport) PublishDeviceRegister(msg DeviceRegister) error {
	f.registers = append(f.registers, msg)
	return nil
}
func (f *fakeTransport) PublishStatus(status GatewayStatus) error {
	f.statuses = append(f.statuses, status)
	return nil
}

type fakeRadioReinit struct {
	calls []radio.Config
}

func (f *fakeRadioReinit) Reconfigure(cfg radio.Config) error {
	f.calls = append(f.calls, cfg)
	return nil
}

type fakeSender struct {
	sent [][]byte
}

func (f *fakeSender) TrySend(data []byte) (bool, error) {
	f.sent = append(f.sent, data)
	return true, nil
}

type fakeQueue struct {
	enqueued []gwqueue.Request
}

func (f *fakeQueue) Enqueue(req gwqueue.Request) error {
	f.enqueued = append(f.enqueued, req)
	return nil
}

func newTestRouter(t *testing.T) (*Router, *fakeTransport, *fakeRadioReinit, *fakeSender, *fakeQueue) {
	t.Helper()
	dir := t.TempDir()
	gwStore := store.NewGatewayStore(filepath.Join(dir, "gateway_config.json"))
	audit, err := store.OpenAuditLog(filepath.Join(dir, "audit.db"))
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	t.Cleanup(func() { audit.Close() })
	transport := &fakeTransport{}
	radioInit := &fakeRadioReinit{}
	sender := &fakeSender{}
	queue := &fakeQueue{}

	r, err := New("deviceAABBCCDDEEFF", gwStore, audit, transport, radioInit, sender, queue, hclog.NewNullLogger())
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return r, transport, radioInit, sender, queue
}

func TestStartsUnprovisioned(t *testing.T) {
	r, transport, _, _, _ := newTestRouter(t)
	if r.Phase() != Unprovisioned {
		t.Fatalf("expected Unprovisioned, got %v", r.Phase())
	}
	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(transport.deviceSubs) != 1 || transport.deviceSubs[0] != "deviceAABBCCDDEEFF" {
		t.Fatalf("expected device-scoped subscribe, got %v", transport.deviceSubs)
	}
	if len(transport.registers) != 1 {
		t.Fatalf("expected one device_register publish, got %d", len(transport.registers))
	}
}

func TestDeviceConfigRejectedEmptyGatewayId(t *testing.T) {
	r, _, _, _, _ := newTestRouter(t)
	err := r.HandleDeviceConfig(&DeviceConfig{ConfigVersion: 1})
	if !errors.Is(err, ctlerr.ErrConfigRejected) {
		t.Fatalf("expected ErrConfigRejected, got %v", err)
	}
	if r.Phase() != Unprovisioned {
		t.Fatalf("expected to remain Unprovisioned on rejected config")
	}
}

func TestDeviceConfigProvisionsGatewayAndReinitializesRadio(t *testing.T) {
	r, transport, radioInit, _, _ := newTestRouter(t)

	err := r.HandleDeviceConfig(&DeviceConfig{
		GatewayId:     "GW-1",
		ConfigVersion: 1,
		LoRa:          &LoRaParams{Frequency: 433000000, SpreadingFactor: 7, Bandwidth: 125000, CodingRate: 5},
		MQTT:          &MQTTParams{Broker: "mqtt.example.com", Port: 1883},
	})
	if err != nil {
		t.Fatalf("handle device_config: %v", err)
	}
	if r.Phase() != Provisioned {
		t.Fatalf("expected Provisioned after valid device_config")
	}
	if len(transport.gatewaySubs) != 1 || transport.gatewaySubs[0] != "GW-1" {
		t.Fatalf("expected gateway-scoped subscribe, got %v", transport.gatewaySubs)
	}
	if len(transport.statuses) != 1 || transport.statuses[0] != StatusOnline {
		t.Fatalf("expected ONLINE status published, got %v", transport.statuses)
	}
	if len(radioInit.calls) != 1 || radioInit.calls[0].Frequency != 433000000 {
		t.Fatalf("expected radio reinit with new frequency, got %+v", radioInit.calls)
	}
}

// TestApplyConfigIdempotent covers §4.G's idempotence rule and invariant
// 10 at the router level: a configVersion <= current is a no-op.
func TestApplyConfigIdempotent(t *testing.T) {
	r, transport, radioInit, _, _ := newTestRouter(t)

	if err := r.HandleDeviceConfig(&DeviceConfig{GatewayId: "GW-1", ConfigVersion: 2, APN: "first"}); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	subsBefore := len(transport.gatewaySubs)
	reinitBefore := len(radioInit.calls)

	if err := r.HandleDeviceConfig(&DeviceConfig{GatewayId: "GW-1", ConfigVersion: 2, APN: "second"}); err != nil {
		t.Fatalf("second apply (same version): %v", err)
	}
	if len(transport.gatewaySubs) != subsBefore {
		t.Fatalf("expected no-op apply to not resubscribe")
	}
	if len(radioInit.calls) != reinitBefore {
		t.Fatalf("expected no-op apply to not reinit radio")
	}
}

func TestNodeConfigForwardsConfigPktWhileProvisioned(t *testing.T) {
	r, _, _, sender, _ := newTestRouter(t)
	if err := r.HandleDeviceConfig(&DeviceConfig{GatewayId: "GW-1", ConfigVersion: 1}); err != nil {
		t.Fatalf("provisioning: %v", err)
	}

	err := r.HandleNodeConfig(&NodeConfigMsg{
		Type: "node_config", NodeId: "nodeA1", GatewayId: "GW-1",
		Schedule: store.Schedule{OnHour: 18, OffHour: 6}, ConfigVersion: 3,
		Intervals: Intervals{Register: 5000, Status: 30000},
	})
	if err != nil {
		t.Fatalf("handle node_config: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected exactly one ConfigPkt transmission, got %d", len(sender.sent))
	}
}

func TestDeviceConfigRecordsAuditEntryOnlyOnWrite(t *testing.T) {
	dir := t.TempDir()
	gwStore := store.NewGatewayStore(filepath.Join(dir, "gateway_config.json"))
	audit, err := store.OpenAuditLog(filepath.Join(dir, "audit.db"))
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer audit.Close()

	r, err := New("deviceAABBCCDDEEFF", gwStore, audit, &fakeTransport{}, &fakeRadioReinit{}, &fakeSender{}, &fakeQueue{}, hclog.NewNullLogger())
	if err != nil {
		t.Fatalf("new router: %v", err)
	}

	if err := r.HandleDeviceConfig(&DeviceConfig{GatewayId: "GW-1", ConfigVersion: 1}); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	// Same version again: no-op, must not add a second audit row.
	if err := r.HandleDeviceConfig(&DeviceConfig{GatewayId: "GW-1", ConfigVersion: 1}); err != nil {
		t.Fatalf("no-op apply: %v", err)
	}

	entries, err := audit.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one audit entry after one real apply, got %d", len(entries))
	}
	if entries[0].ConfigVersion != 1 || entries[0].GatewayId != "GW-1" {
		t.Errorf("unexpected audit entry: %+v", entries[0])
	}
}

func TestNodeControlEnqueuesOnlyManual(t *testing.T) {
	r, _, _, _, queue := newTestRouter(t)
	if err := r.HandleDeviceConfig(&DeviceConfig{GatewayId: "GW-1", ConfigVersion: 1}); err != nil {
		t.Fatalf("provisioning: %v", err)
	}

	if err := r.HandleNodeControl(&NodeControlMsg{
		NodeId: "nodeA1", GatewayId: "GW-1", Action: ControlActionOn, Mode: ControlModeManual, CmdId: 7,
	}); err != nil {
		t.Fatalf("handle manual node_control: %v", err)
	}
	if len(queue.enqueued) != 1 || queue.enqueued[0].CmdId != 7 {
		t.Fatalf("expected manual control to enqueue, got %+v", queue.enqueued)
	}

	if err := r.HandleNodeControl(&NodeControlMsg{
		NodeId: "nodeA1", GatewayId: "GW-1", Action: ControlActionAuto, Mode: ControlModeAuto, CmdId: 8,
	}); err != nil {
		t.Fatalf("handle non-manual node_control: %v", err)
	}
	if len(queue.enqueued) != 1 {
		t.Fatalf("expected non-MANUAL control to not enqueue, got %+v", queue.enqueued)
	}
}
