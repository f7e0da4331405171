package feed

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const defaultSourceTimeout = 15

type sourcesFile struct {
	Sources []*Source `yaml:"sources" validate:"dive,required"`
}

// LoadSources reads and validates the source list. Disabled sources are dropped.
func LoadSources(path string) ([]*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	return ParseSources(data)
}

func ParseSources(data []byte) ([]*Source, error) {
	var file sourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for _, src := range file.Sources {
		if src != nil {
			applySourceDefaults(src)
		}
	}

	if err := validator.New().Struct(&file); err != nil {
		return nil, fmt.Errorf("invalid sources: %w", err)
	}

	seen := make(map[string]bool, len(file.Sources))
	sources := make([]*Source, 0, len(file.Sources))
	for _, src := range file.Sources {
		if seen[src.Name] {
			return nil, fmt.Errorf("duplicate source name '%s'", src.Name)
		}
		seen[src.Name] = true

		if src.TickerPattern != "" {
			re, err := regexp.Compile(src.TickerPattern)
			if err != nil {
				return nil, fmt.Errorf("invalid ticker_pattern for source '%s': %w", src.Name, err)
			}
			if re.NumSubexp() < 1 {
				return nil, fmt.Errorf("ticker_pattern for source '%s' needs a capture group", src.Name)
			}
			src.tickerRe = re
		}

		if src.Disabled {
			slog.Debug("Source disabled", "source", src.Name)
			continue
		}
		sources = append(sources, src)
	}

	return sources, nil
}

func applySourceDefaults(src *Source) {
	if src.Tag == "" {
		src.Tag = src.Name
	}
	if src.Kind == "" {
		src.Kind = KindFeed
	}
	if src.Trust == "" {
		src.Trust = TrustStandard
	}
	if src.Timeout == 0 {
		src.Timeout = defaultSourceTimeout
	}
}

func (s *Source) TimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

// ExtractTickers applies the source's ticker pattern to text and returns the upper-cased first
// capture group of every match, without duplicates.
func (s *Source) ExtractTickers(text string) []string {
	if s == nil || s.tickerRe == nil {
		return nil
	}

	var tickers []string
	seen := make(map[string]bool)
	for _, m := range s.tickerRe.FindAllStringSubmatch(text, -1) {
		ticker := strings.ToUpper(strings.TrimSpace(m[1]))
		if ticker == "" || seen[ticker] {
			continue
		}
		seen[ticker] = true
		tickers = append(tickers, ticker)
	}
	return tickers
}

// Targets expands sources into one fetch target per URL.
func Targets(sources []*Source) []Target {
	var targets []Target
	for _, src := range sources {
		for _, u := range src.URLs {
			targets = append(targets, Target{Source: src, URL: u})
		}
	}
	return targets
}
