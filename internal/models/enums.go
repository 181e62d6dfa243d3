package models

// Category classifies an idea.
type Category string

const (
	CategoryApp           Category = "app-idea"
	CategoryBusiness      Category = "business-idea"
	CategoryWebsite       Category = "website-idea"
	CategoryProduct       Category = "product-idea"
	CategoryService       Category = "service-idea"
	CategoryTech          Category = "tech-idea"
	CategorySocial        Category = "social-idea"
	CategoryEducation     Category = "education-idea"
	CategoryHealth        Category = "health-idea"
	CategoryFinance       Category = "finance-idea"
	CategoryEntertainment Category = "entertainment-idea"
	CategoryOther         Category = "other"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryApp, CategoryBusiness, CategoryWebsite, CategoryProduct,
	CategoryService, CategoryTech, CategorySocial, CategoryEducation,
	CategoryHealth, CategoryFinance, CategoryEntertainment, CategoryOther,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// SortOption orders a feed.
type SortOption string

const (
	SortNewest       SortOption = "newest"
	SortOldest       SortOption = "oldest"
	SortAlphabetical SortOption = "alphabetical"
	SortMostLiked    SortOption = "most-liked"
)

// Valid reports whether s is a known sort option.
func (s SortOption) Valid() bool {
	switch s {
	case SortNewest, SortOldest, SortAlphabetical, SortMostLiked:
		return true
	}
	return false
}

// CollaborationStatus is the author's stance on collaboration.
type CollaborationStatus string

const (
	// StatusLookingForPartner means the author wants a partner.
	StatusLookingForPartner CollaborationStatus = "lfp"
	// StatusGaveUp means the idea is abandoned and open for taking.
	StatusGaveUp CollaborationStatus = "gave-up"
)

// Valid reports whether s is empty (unset) or one of the two known values.
// A patch may not set it back to empty.
func (s CollaborationStatus) Valid() bool {
	return s == "" || s == StatusLookingForPartner || s == StatusGaveUp
}

// RequestStatus is the lifecycle state of a collaboration request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// Terminal reports whether no further transition is allowed.
func (s RequestStatus) Terminal() bool {
	return s == RequestAccepted || s == RequestRejected
}
