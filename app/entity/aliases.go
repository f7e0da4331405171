package entity

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/newsdesk/app/database"
)

type aliasFile struct {
	Tickers []database.TickerSeed `yaml:"tickers"`
}

// LoadAliasSeed reads the alias seed file. A company name missing from its own alias list is
// appended to it.
func LoadAliasSeed(path string) ([]database.TickerSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read alias file: %w", err)
	}

	var file aliasFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	seen := make(map[string]bool, len(file.Tickers))
	for i, seed := range file.Tickers {
		ticker := strings.ToUpper(strings.TrimSpace(seed.Ticker))
		if ticker == "" {
			return nil, fmt.Errorf("entry %d has no ticker", i+1)
		}
		if seen[ticker] {
			return nil, fmt.Errorf("duplicate ticker '%s'", ticker)
		}
		seen[ticker] = true

		file.Tickers[i].Ticker = ticker
		if name := strings.TrimSpace(seed.Name); name != "" && !containsFold(seed.Aliases, name) {
			file.Tickers[i].Aliases = append(file.Tickers[i].Aliases, name)
		}
	}

	return file.Tickers, nil
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), s) {
			return true
		}
	}
	return false
}
