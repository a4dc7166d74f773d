package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFake_AdvancePastDeadlineReleasesWaiter(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(start)

	ch := f.After(3 * 24 * time.Hour)

	select {
	case <-ch:
		t.Fatal("waiter fired before deadline")
	default:
	}

	f.Advance(2 * 24 * time.Hour)
	select {
	case <-ch:
		t.Fatal("waiter fired early")
	default:
	}

	f.Advance(24 * time.Hour)
	select {
	case got := <-ch:
		assert.Equal(t, f.Now(), got)
	default:
		t.Fatal("waiter did not fire after deadline passed")
	}
}

func TestFake_ZeroDurationFiresImmediately(t *testing.T) {
	t.Parallel()
	f := NewFake(time.Now())
	ch := f.After(0)
	select {
	case <-ch:
	default:
		t.Fatal("zero-duration After should fire immediately")
	}
	_ = require.New(t)
}
