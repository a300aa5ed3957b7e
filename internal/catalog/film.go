package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/safliix/console-backend/pkg/types"
)

// FilmForm is the staged snapshot of the film publish screen. File slots are
// nil when the operator left them empty.
type FilmForm struct {
	Title          string           `json:"title" validate:"required,max=200"`
	Description    string           `json:"description" validate:"required,max=5000"`
	Genres         []string         `json:"genres" validate:"required,min=1,dive,required"`
	ReleaseYear    int              `json:"releaseYear" validate:"required,gte=1900,lte=2100"`
	DurationMin    int              `json:"durationMin" validate:"required,gt=0"`
	CommercialType CommercialType   `json:"commercialType" validate:"required,oneof=abonnement location achat"`
	Price          *decimal.Decimal `json:"price" validate:"omitempty"`
	Actors         []ActorRef       `json:"actors"`

	MainImage      *types.FileHandle `json:"-"`
	SecondaryImage *types.FileHandle `json:"-"`
	Trailer        *types.FileHandle `json:"-"`
	Movie          *types.FileHandle `json:"-"`
}

type filmMetadata struct {
	Title          string           `json:"title"`
	Description    string           `json:"description"`
	Genres         []string         `json:"genres"`
	ReleaseYear    int              `json:"releaseYear"`
	DurationMin    int              `json:"durationMin"`
	CommercialType CommercialType   `json:"commercialType"`
	Price          *decimal.Decimal `json:"price"`
	Actors         []string         `json:"actors"`
}

// FilmAdapter plugs film publishing into the media form engine.
type FilmAdapter struct {
	adapter
}

func NewFilmAdapter(backend Publisher) *FilmAdapter {
	return &FilmAdapter{adapter: adapter{
		backend: backend,
		kind:    types.KindFilm,
		roles: map[types.SlotKey]types.AttachmentRole{
			SlotMainImage:      types.RolePoster,
			SlotSecondaryImage: types.RoleThumbnail,
			SlotTrailer:        types.RoleTrailer,
			SlotMovie:          types.RoleMainVideo,
		},
	}}
}

func (*FilmAdapter) Validate(values FilmForm) error {
	return validateStruct(values)
}

// BuildMetadata shapes the backend payload. Subscription-only titles carry
// no price, whatever the form held.
func (*FilmAdapter) BuildMetadata(values FilmForm) (any, error) {
	price := values.Price
	if values.CommercialType == CommercialSubscription {
		price = nil
	}
	return filmMetadata{
		Title:          values.Title,
		Description:    values.Description,
		Genres:         values.Genres,
		ReleaseYear:    values.ReleaseYear,
		DurationMin:    values.DurationMin,
		CommercialType: values.CommercialType,
		Price:          price,
		Actors:         normalizeActors(values.Actors),
	}, nil
}

func (*FilmAdapter) CollectFiles(values FilmForm) []types.SlotFile {
	return collect(
		slotFile(SlotMainImage, values.MainImage),
		slotFile(SlotSecondaryImage, values.SecondaryImage),
		slotFile(SlotTrailer, values.Trailer),
		slotFile(SlotMovie, values.Movie),
	)
}
