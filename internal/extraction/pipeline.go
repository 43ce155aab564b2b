package extraction

import (
	"context"

	"go.uber.org/zap"

	"github.com/jonathan/skill-gap-wizard/internal/upload"
)

// NoTextMessage is recorded for files that produced no usable text.
const NoTextMessage = "no text extracted for this file"

// Process extracts files strictly in order, waiting for each result before
// starting the next, and hands every result to yield as soon as it is known.
// A failing file yields an Extraction without text and the batch continues.
// Process only returns an error when ctx is cancelled mid-batch; a file whose
// request was cut short by the cancellation is yielded as interrupted.
func Process(ctx context.Context, ex Extractor, files []File, logger *zap.Logger, yield func(index int, result upload.Extraction)) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		resp, err := ex.Extract(ctx, f)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				yield(i, upload.Interrupted())
				return ctxErr
			}
			logger.Warn("extraction failed",
				zap.String("file", f.Name),
				zap.Int("index", i),
				zap.Error(err))
		}
		yield(i, toExtraction(resp, err))
	}
	return nil
}

func toExtraction(resp *Response, err error) upload.Extraction {
	if err != nil {
		return upload.Extraction{Error: NoTextMessage}
	}
	if resp == nil || resp.Text == "" {
		var raw map[string]any
		if resp != nil {
			raw = resp.Raw
		}
		return upload.Extraction{RawResponse: raw, Error: NoTextMessage}
	}
	text := resp.Text
	return upload.Extraction{ExtractedText: &text, RawResponse: resp.Raw}
}
