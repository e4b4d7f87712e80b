package radio

import (
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Serializer mediates all outbound frames over a single Transceiver
// (§5). While a transmit is in flight, further TrySend calls are dropped
// rather than queued: the radio is half-duplex and single-owner, and
// retries are the caller's responsibility (§4.E does this for control
// commands; the node's periodic Register/Status emission just sends again
// at its next interval).
//
// txBusy is guarded by a mutex rather than relied on as a single-threaded
// invariant, because the MQTT client's message callback (internal/mqttlink)
// runs on its own goroutine and may attempt a send concurrently with the
// main loop.
type Serializer struct {
	tx  Transceiver
	log hclog.Logger

	mu     sync.Mutex
	txBusy bool
}

func NewSerializer(tx Transceiver, log hclog.Logger) *Serializer {
	return &Serializer{tx: tx, log: log}
}

// TrySend attempts to transmit data. It returns false without error if
// the radio is already busy; true if the frame was sent. After Send
// completes, the radio is explicitly returned to receive mode before
// txBusy is cleared.
func (s *Serializer) TrySend(data []byte) (bool, error) {
	s.mu.Lock()
	if s.txBusy {
		s.mu.Unlock()
		s.log.Debug("tx busy, dropping send attempt")
		return false, nil
	}
	s.txBusy = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.txBusy = false
		s.mu.Unlock()
	}()

	if err := s.tx.Send(data); err != nil {
		return false, err
	}
	if err := s.tx.SetReceiveMode(); err != nil {
		return false, err
	}
	return true, nil
}

// Poll drains one received frame, if any, from the underlying
// transceiver. It never blocks.
func (s *Serializer) Poll() ([]byte, bool, error) {
	return s.tx.Poll()
}
