// Package diff previews pending formatting changes without modifying files.
package diff

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"sync"

	"github.com/sergi/go-diff/diffmatchpatch"
	"golang.org/x/sync/errgroup"

	"github.com/codetidy/crustfmt/internal/runner"
)

const fileHeaderFormat = "--- %s\n"

// Options controls diff generation.
type Options struct {
	// Workers bounds concurrent uncrustify invocations; zero selects the CPU count.
	Workers int
}

// Report renders each candidate file through uncrustify, compares the result
// against the on-disk content, and writes a per-file diff for every file with
// pending changes, in sorted path order. It returns the number of files that
// would change. Files on disk are never modified.
func Report(executionContext context.Context, formatRunner *runner.Runner, files []string, writer io.Writer, options Options) (int, error) {
	workerLimit := options.Workers
	if workerLimit <= 0 {
		workerLimit = runtime.NumCPU()
	}

	group, groupContext := errgroup.WithContext(executionContext)
	group.SetLimit(workerLimit)

	var resultsMutex sync.Mutex
	pendingDiffs := make(map[string]string)

	for _, filePath := range files {
		filePath := filePath
		group.Go(func() error {
			formattedContent, renderError := formatRunner.RenderFile(groupContext, filePath)
			if renderError != nil {
				return renderError
			}
			currentContent, readError := os.ReadFile(filePath)
			if readError != nil {
				return fmt.Errorf("read %s: %w", filePath, readError)
			}
			if bytes.Equal(currentContent, formattedContent) {
				return nil
			}
			differ := diffmatchpatch.New()
			contentDiffs := differ.DiffMain(string(currentContent), string(formattedContent), false)
			renderedDiff := differ.DiffPrettyText(differ.DiffCleanupSemantic(contentDiffs))
			resultsMutex.Lock()
			pendingDiffs[filePath] = renderedDiff
			resultsMutex.Unlock()
			return nil
		})
	}
	if waitError := group.Wait(); waitError != nil {
		return 0, waitError
	}

	sortedPaths := make([]string, 0, len(pendingDiffs))
	for filePath := range pendingDiffs {
		sortedPaths = append(sortedPaths, filePath)
	}
	sort.Strings(sortedPaths)
	for _, filePath := range sortedPaths {
		fmt.Fprintf(writer, fileHeaderFormat, filePath)
		fmt.Fprintln(writer, pendingDiffs[filePath])
	}
	return len(sortedPaths), nil
}
