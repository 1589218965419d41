// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

// loopOptions holds configuration applied at Loop construction.
type loopOptions struct {
	writeQueueHighWatermark int
	logger                  Logger
}

// --- Loop Options ---

// LoopOption configures a Loop instance.
type LoopOption interface {
	applyLoop(*loopOptions) error
}

// loopOptionImpl implements LoopOption.
type loopOptionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (l *loopOptionImpl) applyLoop(opts *loopOptions) error {
	return l.applyLoopFunc(opts)
}

// WithWriteQueueHighWatermark sets the number of buffered-but-unflushed
// outbound bytes, across all registered connections, at or above which
// [Loop.IsQueueLarge] reports true. The dispatcher uses this as its
// backpressure signal to drain writes before considering new commands.
func WithWriteQueueHighWatermark(bytes int) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.writeQueueHighWatermark = bytes
		return nil
	}}
}

// WithLogger installs a per-loop structured logger, overriding the
// package-level default for this Loop instance only.
func WithLogger(logger Logger) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	}}
}

const defaultWriteQueueHighWatermark = 1 << 20 // 1 MiB

// resolveLoopOptions applies LoopOption instances to loopOptions.
func resolveLoopOptions(opts []LoopOption) (*loopOptions, error) {
	cfg := &loopOptions{
		writeQueueHighWatermark: defaultWriteQueueHighWatermark,
	}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
