package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/safliix/console-backend/pkg/types"
)

// SeriesForm is the staged snapshot of the series publish screen. A series
// carries no movie file of its own; episodes hold the video content.
type SeriesForm struct {
	Title          string           `json:"title" validate:"required,max=200"`
	Description    string           `json:"description" validate:"required,max=5000"`
	Genres         []string         `json:"genres" validate:"required,min=1,dive,required"`
	ReleaseYear    int              `json:"releaseYear" validate:"required,gte=1900,lte=2100"`
	CommercialType CommercialType   `json:"commercialType" validate:"required,oneof=abonnement location achat"`
	Price          *decimal.Decimal `json:"price" validate:"omitempty"`
	Actors         []ActorRef       `json:"actors"`

	MainImage      *types.FileHandle `json:"-"`
	SecondaryImage *types.FileHandle `json:"-"`
	Trailer        *types.FileHandle `json:"-"`
}

type seriesMetadata struct {
	Title          string           `json:"title"`
	Description    string           `json:"description"`
	Genres         []string         `json:"genres"`
	ReleaseYear    int              `json:"releaseYear"`
	CommercialType CommercialType   `json:"commercialType"`
	Price          *decimal.Decimal `json:"price"`
	Actors         []string         `json:"actors"`
}

// SeriesAdapter plugs series publishing into the media form engine.
type SeriesAdapter struct {
	adapter
}

func NewSeriesAdapter(backend Publisher) *SeriesAdapter {
	return &SeriesAdapter{adapter: adapter{
		backend: backend,
		kind:    types.KindSeries,
		roles: map[types.SlotKey]types.AttachmentRole{
			SlotMainImage:      types.RolePoster,
			SlotSecondaryImage: types.RoleThumbnail,
			SlotTrailer:        types.RoleTrailer,
		},
	}}
}

func (*SeriesAdapter) Validate(values SeriesForm) error {
	return validateStruct(values)
}

func (*SeriesAdapter) BuildMetadata(values SeriesForm) (any, error) {
	price := values.Price
	if values.CommercialType == CommercialSubscription {
		price = nil
	}
	return seriesMetadata{
		Title:          values.Title,
		Description:    values.Description,
		Genres:         values.Genres,
		ReleaseYear:    values.ReleaseYear,
		CommercialType: values.CommercialType,
		Price:          price,
		Actors:         normalizeActors(values.Actors),
	}, nil
}

func (*SeriesAdapter) CollectFiles(values SeriesForm) []types.SlotFile {
	return collect(
		slotFile(SlotMainImage, values.MainImage),
		slotFile(SlotSecondaryImage, values.SecondaryImage),
		slotFile(SlotTrailer, values.Trailer),
	)
}
