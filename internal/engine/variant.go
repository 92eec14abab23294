package engine

import (
	"context"
	"fmt"
	"io"

	"github.com/datallboy/gorom/internal/domain"
	"github.com/datallboy/gorom/internal/platform"
	"github.com/datallboy/gorom/internal/romm"
)

// Content is the slice of the RomM client the runners need.
type Content interface {
	Game(ctx context.Context, id int) (*romm.Game, error)
	Firmware(ctx context.Context, platformID, id int) (*romm.Firmware, error)
	OpenContent(ctx context.Context, ref domain.SourceRef) (io.ReadCloser, int64, error)
}

// Plan is where and how a job materializes its output.
type Plan struct {
	DisplayName string
	Platform    string

	// Directory is created (or reused) under the destination root.
	Directory string
	// SubDirectory, when set, is replaced fresh inside Directory and receives the file.
	SubDirectory string
	FileName     string

	Source domain.SourceRef
	Expand bool
}

// Variant resolves an item into a plan. Game and firmware downloads differ only here.
type Variant interface {
	Kind() domain.JobKind
	Resolve(ctx context.Context, item domain.Item) (Plan, error)
}

type GameVariant struct {
	content Content
}

func NewGameVariant(content Content) *GameVariant {
	return &GameVariant{content: content}
}

func (v *GameVariant) Kind() domain.JobKind { return domain.KindGame }

// Resolve places single-file games straight into the platform folder. Multi-disc
// games come down as one zip that is expanded into a folder named after the game.
func (v *GameVariant) Resolve(ctx context.Context, item domain.Item) (Plan, error) {
	g, err := v.content.Game(ctx, item.ID)
	if err != nil {
		return Plan{}, fmt.Errorf("fetch rom %d: %w", item.ID, err)
	}

	slug := g.PlatformSlug
	if slug == "" {
		slug = g.PlatformFsSlug
	}

	p := Plan{
		DisplayName: g.DisplayName(),
		Platform:    slug,
		Directory:   platform.Folder(slug),
		FileName:    g.FsName,
	}

	if g.Multi {
		p.SubDirectory = g.FsNameNoExt
		p.FileName = g.FsNameNoExt + ".zip"
		p.Expand = true
	}

	p.Source = domain.SourceRef{Kind: domain.KindGame, ID: g.ID, FileName: p.FileName}
	return p, nil
}

type FirmwareVariant struct {
	content Content
}

func NewFirmwareVariant(content Content) *FirmwareVariant {
	return &FirmwareVariant{content: content}
}

func (v *FirmwareVariant) Kind() domain.JobKind { return domain.KindFirmware }

func (v *FirmwareVariant) Resolve(ctx context.Context, item domain.Item) (Plan, error) {
	fw, err := v.content.Firmware(ctx, item.PlatformID, item.ID)
	if err != nil {
		return Plan{}, fmt.Errorf("fetch firmware %d: %w", item.ID, err)
	}

	return Plan{
		DisplayName: fw.FileName,
		Platform:    item.PlatformSlug,
		Directory:   platform.FirmwareFolder,
		FileName:    fw.FileName,
		Source:      domain.SourceRef{Kind: domain.KindFirmware, ID: fw.ID, FileName: fw.FileName},
	}, nil
}
