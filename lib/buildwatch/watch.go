// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildwatch

import (
	"context"
	"errors"
)

// Watch builds once, then rebuilds after every Change until ctx is
// cancelled or changes is closed. Build failures are logged by the
// Builder and reported through onBuild when it is non-nil; they never
// stop the loop.
func Watch(ctx context.Context, changes <-chan Change, builder *Builder, onBuild func(Result, error)) error {
	build := func() {
		result, err := builder.Build(ctx)
		if ctx.Err() != nil {
			return
		}
		if onBuild != nil {
			onBuild(result, err)
		}
	}

	build()
	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				return errors.New("source watcher stopped")
			}
			builder.logger.Info("rebuilding", "changed", len(change.Paths), "first", firstPath(change))
			build()
		}
	}
}

func firstPath(change Change) string {
	if len(change.Paths) == 0 {
		return ""
	}
	return change.Paths[0]
}
