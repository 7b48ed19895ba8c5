package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/MeKo-Tech/cardscan/internal/framesource"
)

// Run pulls frames from src until it is exhausted or ctx is done, handing
// each result to sink. Frames are released after processing. Run returns
// nil when the source ends normally.
func (p *Pipeline) Run(ctx context.Context, src framesource.Source, sink func(FrameResult)) error {
	for {
		frame, err := src.Next(ctx)
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, framesource.ErrClosed):
			slog.Debug("Frame source finished", "frames", p.seq)
			return nil
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("failed to read frame: %w", err)
		}

		res := p.ProcessFrame(ctx, frame)
		frame.Release()
		if sink != nil {
			sink(res)
		} else if res.Debug != nil {
			res.Debug.Release()
		}
	}
}
