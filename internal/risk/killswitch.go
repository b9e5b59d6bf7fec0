package risk

import "sync"

// KillSwitch is a process-wide manual halt, exposed to the external
// control surface (spec.md §3 "process-wide boolean on BotState with a
// reason string; toggling it is exposed to the external control
// surface").
type KillSwitch struct {
	mu     sync.RWMutex
	active bool
	reason string
}

// Engage trips the kill switch with reason.
func (k *KillSwitch) Engage(reason string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.active = true
	k.reason = reason
}

// Disengage clears the kill switch.
func (k *KillSwitch) Disengage() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.active = false
	k.reason = ""
}

// Active reports whether trading is currently halted.
func (k *KillSwitch) Active() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.active
}

// Reason returns the reason given at the last Engage call.
func (k *KillSwitch) Reason() string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.reason
}
