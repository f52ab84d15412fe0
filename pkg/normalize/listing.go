package normalize

import "github.com/listinglab/clover/pkg/models"

// NormalizedListing is the comparison view of a listing. Scorers only ever
// see this shape; numeric fields stay nil when the source field is absent so
// that missing values can be told apart from zero.
type NormalizedListing struct {
	ID          string
	OwnerID     string
	Title       string
	Address     string
	Description string
	Rent        *float64
	Size        *float64
	Bedrooms    *int
	Bathrooms   *int
	ImageURLs   []string
}

// Listing builds the normalized comparison view of a listing.
func Listing(l models.Listing) NormalizedListing {
	return NormalizedListing{
		ID:          l.ID,
		OwnerID:     l.OwnerID,
		Title:       Text(l.Title),
		Address:     Address(l.Address()),
		Description: Text(l.Description),
		Rent:        l.Rent,
		Size:        l.Size,
		Bedrooms:    l.Bedrooms,
		Bathrooms:   l.Bathrooms,
		ImageURLs:   l.ImageURLs,
	}
}
