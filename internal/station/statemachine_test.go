package station

import "testing"

func TestCanTransitionAllowsSameStatus(t *testing.T) {
	if !CanTransition("1.6", StatusCharging, StatusCharging) {
		t.Fatal("expected a self-transition to always be legal")
	}
}

func TestCanTransition16FollowsChargingSessionLifecycle(t *testing.T) {
	cases := []struct {
		from, to ConnectorStatus
		want     bool
	}{
		{StatusAvailable, StatusPreparing, true},
		{StatusPreparing, StatusCharging, true},
		{StatusCharging, StatusSuspendedEVSE, true},
		{StatusCharging, StatusFinishing, true},
		{StatusFinishing, StatusAvailable, true},
		{StatusAvailable, StatusCharging, false},
		{StatusFaulted, StatusCharging, false},
	}
	for _, c := range cases {
		if got := CanTransition("1.6", c.from, c.to); got != c.want {
			t.Errorf("CanTransition(1.6, %s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestCanTransition20UsesReducedStatusSet(t *testing.T) {
	if !CanTransition("2.0.1", StatusAvailable, StatusOccupied) {
		t.Fatal("expected Available -> Occupied to be legal under 2.0.1")
	}
	if CanTransition("2.0.1", StatusAvailable, StatusPreparing) {
		t.Fatal("expected Preparing to be outside the 2.0.1 status set")
	}
}

func TestCanTransitionFaultedRecoversToAvailableOrUnavailable(t *testing.T) {
	if !CanTransition("1.6", StatusFaulted, StatusAvailable) {
		t.Fatal("expected Faulted -> Available to be a legal recovery path")
	}
	if !CanTransition("1.6", StatusFaulted, StatusUnavailable) {
		t.Fatal("expected Faulted -> Unavailable to be legal")
	}
	if CanTransition("1.6", StatusFaulted, StatusCharging) {
		t.Fatal("expected Faulted -> Charging to be illegal")
	}
}
