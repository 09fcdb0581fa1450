// Package keysource loads the keys a ring is populated with at startup.
package keysource

import (
	"bufio"
	"context"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/JWilliamson45/chord/keyset"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Source interface {
	Keys(ctx context.Context) ([]int, error)
}

// FileSource reads a text file of keys separated by commas or whitespace.
type FileSource struct {
	Path   string
	Logger *zap.Logger
}

func (source FileSource) Keys(ctx context.Context) ([]int, error) {
	f, err := os.Open(source.Path)
	if err != nil {
		return nil, errors.Wrap(err, "open key file")
	}
	defer f.Close()

	logger := source.Logger
	if logger == nil {
		logger = zap.L()
	}
	keys, err := Parse(f, logger)
	if err != nil {
		return nil, errors.Wrapf(err, "read key file %s", source.Path)
	}
	logger.Debug("keys loaded", zap.String("path", source.Path), zap.Ints("keys", keys))
	return keys, nil
}

type Static []int

func (source Static) Keys(ctx context.Context) ([]int, error) {
	return Normalize(source), nil
}

func isDelimiter(r rune) bool {
	return r == ',' || r == ' ' || r == '\t' || r == '\r' || r == '\n'
}

// Parse reads delimited keys. Tokens that are not integers are dropped,
// then the result is normalized.
func Parse(r io.Reader, logger *zap.Logger) ([]int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanLines)
	var keys []int
	for scanner.Scan() {
		for _, token := range strings.FieldsFunc(scanner.Text(), isDelimiter) {
			key, err := strconv.Atoi(token)
			if err != nil {
				if logger != nil {
					logger.Warn("drop key token", zap.String("token", token))
				}
				continue
			}
			keys = append(keys, key)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read keys")
	}
	return Normalize(keys), nil
}

// Normalize drops keys outside the key space and repeated keys, keeping
// the first occurrence.
func Normalize(keys []int) []int {
	var seen keyset.KeySet
	ret := make([]int, 0, len(keys))
	for _, k := range keys {
		if !keyset.Valid(k) || seen.Contains(k) {
			continue
		}
		seen.Add(k)
		ret = append(ret, k)
	}
	return ret
}
