package catalog

import (
	"github.com/safliix/console-backend/pkg/types"
)

// EpisodeForm is the staged snapshot of the episode publish screen. An
// episode always belongs to an existing series.
type EpisodeForm struct {
	SeriesID    string `json:"seriesId" validate:"required,uuid4"`
	SeasonNum   int    `json:"seasonNum" validate:"required,gt=0"`
	EpisodeNum  int    `json:"episodeNum" validate:"required,gt=0"`
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
	DurationMin int    `json:"durationMin" validate:"required,gt=0"`

	Poster   *types.FileHandle `json:"-"`
	Video    *types.FileHandle `json:"-"`
	Subtitle *types.FileHandle `json:"-"`
}

type episodeMetadata struct {
	SeriesID    string `json:"seriesId"`
	SeasonNum   int    `json:"seasonNum"`
	EpisodeNum  int    `json:"episodeNum"`
	Title       string `json:"title"`
	Description string `json:"description"`
	DurationMin int    `json:"durationMin"`
}

// EpisodeAdapter plugs episode publishing into the media form engine.
type EpisodeAdapter struct {
	adapter
}

func NewEpisodeAdapter(backend Publisher) *EpisodeAdapter {
	return &EpisodeAdapter{adapter: adapter{
		backend: backend,
		kind:    types.KindEpisode,
		roles: map[types.SlotKey]types.AttachmentRole{
			SlotPoster:   types.RolePoster,
			SlotVideo:    types.RoleMainVideo,
			SlotSubtitle: types.RoleSubtitle,
		},
	}}
}

func (*EpisodeAdapter) Validate(values EpisodeForm) error {
	return validateStruct(values)
}

func (*EpisodeAdapter) BuildMetadata(values EpisodeForm) (any, error) {
	return episodeMetadata{
		SeriesID:    values.SeriesID,
		SeasonNum:   values.SeasonNum,
		EpisodeNum:  values.EpisodeNum,
		Title:       values.Title,
		Description: values.Description,
		DurationMin: values.DurationMin,
	}, nil
}

func (*EpisodeAdapter) CollectFiles(values EpisodeForm) []types.SlotFile {
	return collect(
		slotFile(SlotPoster, values.Poster),
		slotFile(SlotVideo, values.Video),
		slotFile(SlotSubtitle, values.Subtitle),
	)
}
