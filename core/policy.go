package core

import (
	"fmt"

	"github.com/Skryldev/photo-processor/config"
)

// Resolution is a named maximum output width.
type Resolution struct {
	Key   string
	Width int
}

// Encoding is an output format at a fixed quality.
type Encoding struct {
	Format  Format
	Quality int
}

// Policy is the fixed set of renditions produced for every photo.
type Policy struct {
	Resolutions []Resolution
	Encodings   []Encoding
}

// DefaultPolicy is sm/md/lg at 512/1024/1600 wide, each as WebP q82 and JPEG q85.
func DefaultPolicy() Policy {
	return PolicyFromConfig(config.Default())
}

// PolicyFromConfig builds the variant policy from configuration.
func PolicyFromConfig(cfg config.Config) Policy {
	p := Policy{
		Encodings: []Encoding{
			{Format: FormatWebP, Quality: cfg.WebPQuality},
			{Format: FormatJPEG, Quality: cfg.JPEGQuality},
		},
	}
	for _, r := range cfg.Resolutions {
		p.Resolutions = append(p.Resolutions, Resolution{Key: r.Key, Width: r.Width})
	}
	return p
}

// Size returns the number of variants the policy produces.
func (p Policy) Size() int { return len(p.Resolutions) * len(p.Encodings) }

// Covers reports an error unless o holds exactly one URL per
// (resolution, format) pair of the policy.
func (p Policy) Covers(o Outputs) error {
	if o.Count() != p.Size() {
		return fmt.Errorf("have %d urls, want %d", o.Count(), p.Size())
	}
	for _, r := range p.Resolutions {
		for _, e := range p.Encodings {
			if o[r.Key][e.Format] == "" {
				return fmt.Errorf("missing %s.%s", r.Key, e.Format)
			}
		}
	}
	return nil
}
