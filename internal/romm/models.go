package romm

import "github.com/datallboy/gorom/internal/domain"

// Game is the subset of RomM's rom schema the downloader needs
type Game struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	FsName         string `json:"fs_name"`
	FsNameNoExt    string `json:"fs_name_no_ext"`
	PlatformID     int    `json:"platform_id"`
	PlatformSlug   string `json:"platform_slug"`
	PlatformFsSlug string `json:"platform_fs_slug"`
	Multi          bool   `json:"multi"`
	FsSizeBytes    int64  `json:"fs_size_bytes"`
}

type Firmware struct {
	ID            int    `json:"id"`
	FileName      string `json:"file_name"`
	FileSizeBytes int64  `json:"file_size_bytes"`
	PlatformID    int    `json:"platform_id"`
}

type gamePage struct {
	Items []Game `json:"items"`
	Total int    `json:"total"`
}

// DisplayName falls back to the file name for roms without metadata.
func (g Game) DisplayName() string {
	if g.Name != "" {
		return g.Name
	}
	return g.FsName
}

// Item converts a rom into a download request.
func (g Game) Item() domain.Item {
	return domain.Item{
		Kind:         domain.KindGame,
		ID:           g.ID,
		Name:         g.DisplayName(),
		PlatformID:   g.PlatformID,
		PlatformSlug: g.PlatformSlug,
		FileName:     g.FsName,
		Multi:        g.Multi,
	}
}

func (f Firmware) Item() domain.Item {
	return domain.Item{
		Kind:       domain.KindFirmware,
		ID:         f.ID,
		Name:       f.FileName,
		PlatformID: f.PlatformID,
		FileName:   f.FileName,
	}
}
