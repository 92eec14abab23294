package storage

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/datallboy/gorom/internal/domain"
	"github.com/datallboy/gorom/internal/infra/logger"
)

// Provisioner resolves named destination directories. Concurrent Acquire calls for
// the same name converge on a single directory.
type Provisioner struct {
	docs DocumentProvider
	log  *logger.Logger
}

func NewProvisioner(docs DocumentProvider, log *logger.Logger) *Provisioner {
	if log == nil {
		log = logger.Discard()
	}
	return &Provisioner{docs: docs, log: log}
}

// Docs returns the underlying document provider.
func (p *Provisioner) Docs() DocumentProvider {
	return p.docs
}

// Acquire returns the directory under base named logicalName, or its lowest
// numbered variant ("name (1)"), creating it only when neither exists.
func (p *Provisioner) Acquire(base, logicalName string) (Node, error) {
	dir, ok, err := p.Find(base, logicalName)
	if err != nil {
		return Node{}, err
	}
	if ok {
		return dir, nil
	}

	created, err := p.docs.CreateChildDirectory(base, logicalName)
	switch {
	case err == nil && created.Name == logicalName:
		p.log.Debug("Created directory %s", created.Path)
		return created, nil

	case err == nil:
		// Provider renamed on conflict: a sibling job won. Drop our copy.
		p.log.Debug("Provider created %s instead of %s, removing", created.Name, logicalName)
		if derr := p.docs.Delete(created); derr != nil {
			p.log.Warn("Failed to remove duplicate directory %s: %v", created.Path, derr)
		}

	case errors.Is(err, domain.ErrDirectoryRace):
		p.log.Debug("Directory %s created concurrently, re-checking", logicalName)

	default:
		return Node{}, err
	}

	dir, ok, err = p.Find(base, logicalName)
	if err != nil {
		return Node{}, err
	}
	if !ok {
		return Node{}, fmt.Errorf("directory %s missing after concurrent create: %w", logicalName, domain.ErrStorage)
	}
	return dir, nil
}

// Find looks up logicalName under base without creating anything. An exact match wins
// over numbered variants; among variants the lowest number wins.
func (p *Provisioner) Find(base, logicalName string) (Node, bool, error) {
	children, err := p.docs.ListChildren(base)
	if err != nil {
		return Node{}, false, err
	}

	var best Node
	bestN := -1
	variant := variantPattern(logicalName)

	for _, c := range children {
		if !c.IsDir {
			continue
		}
		if c.Name == logicalName {
			return c, true, nil
		}
		if n, ok := variantNumber(variant, c.Name); ok && (bestN < 0 || n < bestN) {
			best, bestN = c, n
		}
	}

	return best, bestN >= 0, nil
}

// CreateOrReplaceFile returns an empty file named fileName inside dir. An existing
// file with that name is replaced and numbered duplicates ("name (1).ext") are removed.
func (p *Provisioner) CreateOrReplaceFile(dir Node, fileName string) (Node, error) {
	children, err := p.docs.ListChildren(dir.Path)
	if err != nil {
		return Node{}, err
	}

	ext := path.Ext(fileName)
	variant := variantPattern(strings.TrimSuffix(fileName, ext))

	for _, c := range children {
		if c.IsDir || c.Name == fileName || path.Ext(c.Name) != ext {
			continue
		}
		if _, ok := variantNumber(variant, strings.TrimSuffix(c.Name, ext)); ok {
			p.log.Debug("Removing duplicate %s", c.Path)
			if err := p.docs.Delete(c); err != nil {
				return Node{}, err
			}
		}
	}

	return p.docs.CreateChildFile(dir.Path, fileName)
}

// Recreate deletes parent/name if it exists and returns a fresh empty directory.
func (p *Provisioner) Recreate(parent Node, name string) (Node, error) {
	children, err := p.docs.ListChildren(parent.Path)
	if err != nil {
		return Node{}, err
	}
	for _, c := range children {
		if c.Name == name {
			p.log.Debug("Replacing existing %s", c.Path)
			if err := p.docs.Delete(c); err != nil {
				return Node{}, err
			}
		}
	}
	return p.Acquire(parent.Path, name)
}

// variantPattern matches "base (n)" and "base(n)".
func variantPattern(base string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(base) + `\s*\((\d+)\)$`)
}

func variantNumber(re *regexp.Regexp, candidate string) (int, bool) {
	m := re.FindStringSubmatch(candidate)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
