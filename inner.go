package photoprocessor

import "github.com/Skryldev/photo-processor/core"

// Inner exposes the underlying core.Processor for advanced use (e.g. swapping
// a pipeline stage in tests). Prefer the high-level API for normal usage.
func (p *Processor) Inner() *core.Processor { return p.inner }
