package framestore

import (
	"bytes"
	"sync"
	"testing"
	"time"
)

func testFrame(fill byte) Frame {
	pixels := bytes.Repeat([]byte{fill}, 12)
	return Frame{Pixels: pixels, Width: 2, Height: 2, Channels: 3, CapturedAt: time.Now()}
}

func TestGetOnEmptyStoreReportsNoFrame(t *testing.T) {
	store := NewStore()
	if _, ok := store.Get(); ok {
		t.Fatal("empty store should report no frame")
	}
}

func TestGetReturnsEqualContentInIndependentStorage(t *testing.T) {
	store := NewStore()
	original := testFrame(7)
	store.Put(original)

	got, ok := store.Get()
	if !ok {
		t.Fatal("expected a frame after Put")
	}
	if !bytes.Equal(got.Pixels, original.Pixels) {
		t.Fatal("frame content should match what was stored")
	}

	// Mutating the returned copy must not leak into the store.
	got.Pixels[0] = 0xFF
	again, _ := store.Get()
	if again.Pixels[0] != 7 {
		t.Fatal("mutation of a returned frame affected the stored frame")
	}

	// Mutating the caller's original buffer must not leak either.
	original.Pixels[1] = 0xEE
	again, _ = store.Get()
	if again.Pixels[1] != 7 {
		t.Fatal("mutation of the producer's buffer affected the stored frame")
	}
}

func TestPutIsLatestWins(t *testing.T) {
	store := NewStore()
	store.Put(testFrame(1))
	store.Put(testFrame(2))

	got, _ := store.Get()
	if got.Pixels[0] != 2 {
		t.Fatalf("expected latest frame, got fill %d", got.Pixels[0])
	}
}

func TestConcurrentReadersSeeWholeFrames(t *testing.T) {
	store := NewStore()
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		fill := byte(0)
		for {
			select {
			case <-done:
				return
			default:
			}
			fill++
			store.Put(testFrame(fill))
		}
	}()

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				frame, ok := store.Get()
				if !ok {
					continue
				}
				first := frame.Pixels[0]
				for _, b := range frame.Pixels {
					if b != first {
						t.Error("observed a torn frame")
						return
					}
				}
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	close(done)
	wg.Wait()
}
