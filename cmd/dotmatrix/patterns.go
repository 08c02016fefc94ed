package main

import (
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/fkcurrie/dotmatrix-golang/internal/config"
	"github.com/fkcurrie/dotmatrix-golang/internal/display"
	"github.com/fkcurrie/dotmatrix-golang/internal/pattern"
)

// cycle is the order OK steps through
var cycle = []string{config.PatternFire, config.PatternSplash, config.PatternSolid, config.PatternOff}

// patternSet holds one animation per pattern name and the selected one
type patternSet struct {
	anims map[string]display.Animation
	cur   int
}

func newPatterns(cfg *config.Config) (*patternSet, error) {
	splash, err := loadSplash(cfg.Splash)
	if err != nil {
		return nil, err
	}
	p := &patternSet{anims: map[string]display.Animation{
		config.PatternFire:   pattern.NewFire(time.Now().UnixNano()),
		config.PatternSplash: splash,
		config.PatternSolid:  pattern.Solid{Level: cfg.Level},
		config.PatternOff:    pattern.Solid{},
	}}
	p.Select(cfg.Pattern)
	return p, nil
}

func loadSplash(path string) (*pattern.Splash, error) {
	if path == "" {
		return pattern.NewDefaultSplash()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening splash")
	}
	defer f.Close()
	return pattern.NewSplash(f)
}

// Name returns the selected pattern name
func (p *patternSet) Name() string { return cycle[p.cur] }

// Current returns the selected animation
func (p *patternSet) Current() display.Animation { return p.anims[p.Name()] }

// Next selects the following pattern in the cycle
func (p *patternSet) Next() display.Animation {
	p.cur = (p.cur + 1) % len(cycle)
	return p.Current()
}

// Select selects the named pattern; unknown names leave it unchanged
func (p *patternSet) Select(name string) display.Animation {
	for i, n := range cycle {
		if n == name {
			p.cur = i
		}
	}
	return p.Current()
}
