package framesource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/cardscan/internal/pixbuf"
)

// Player replays image files into a Mailbox at a fixed frame rate,
// standing in for a live camera.
type Player struct {
	Paths  []string
	FPS    float64
	Loop   bool
	Format pixbuf.Format
}

// Play publishes frames until the list is exhausted (or forever when Loop
// is set) or ctx ends. The mailbox is closed on return.
func (p Player) Play(ctx context.Context, mb *Mailbox) error {
	defer mb.Close()
	if len(p.Paths) == 0 {
		return errors.New("player has no frames")
	}
	if p.FPS <= 0 {
		return fmt.Errorf("invalid frame rate %v", p.FPS)
	}

	ticker := time.NewTicker(time.Duration(float64(time.Second) / p.FPS))
	defer ticker.Stop()

	for {
		for _, path := range p.Paths {
			frame, err := LoadFrame(path, p.Format)
			if err != nil {
				return err
			}
			mb.Publish(frame)
			slog.Debug("Published frame", "path", path, "dropped", mb.Dropped())

			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
		if !p.Loop {
			return nil
		}
	}
}
