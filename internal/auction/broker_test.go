package auction

import (
	"context"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/alanyoungcy/auctiond/internal/domain"
)

func TestBroker_OrderedFanOut(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := b.Subscribe(ctx)
	second := b.Subscribe(ctx)

	// Nobody is reading yet; Publish must not block.
	for range 100 {
		b.Publish(domain.Event{Type: domain.EventBidPlaced})
	}
	check.Equal(t, uint64(100), b.Seq())

	for _, ch := range []<-chan domain.Event{first, second} {
		for want := uint64(1); want <= 100; want++ {
			select {
			case evt := <-ch:
				assert.Equal(t, want, evt.Seq)
			case <-time.After(2 * time.Second):
				t.Fatalf("timed out waiting for seq %d", want)
			}
		}
	}
}

func TestBroker_CancelClosesChannel(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ctx, cancel := context.WithCancel(context.Background())
	ch := b.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		check.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestBroker_CloseEndsSubscriptions(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe(context.Background())
	b.Close()

	select {
	case _, ok := <-ch:
		check.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after broker close")
	}

	late := b.Subscribe(context.Background())
	_, ok := <-late
	check.False(t, ok)
}

func TestBroker_CloseDrainsQueued(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe(context.Background())
	for range 3 {
		b.Publish(domain.Event{Type: domain.EventLotSold})
	}
	b.Close()
	b.Publish(domain.Event{Type: domain.EventLotSold})

	var got []uint64
	timeout := time.After(2 * time.Second)
	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				check.Equal(t, []uint64{1, 2, 3}, got)
				return
			}
			got = append(got, evt.Seq)
		case <-timeout:
			t.Fatal("channel not closed after drain")
		}
	}
}
