package models

import "time"

// Field limits for ideas.
const (
	MaxTitleLen       = 100
	MaxDescriptionLen = 2000
	// FeedLimit caps a feed query before search filtering. It is a page-size
	// ceiling, not pagination.
	FeedLimit = 50
)

// Idea is a user-submitted proposal.
type Idea struct {
	ID                  string              `json:"id"`
	Title               string              `json:"title"`
	Description         string              `json:"description"`
	Category            Category            `json:"category"`
	AuthorID            string              `json:"author_id"`
	AuthorName          string              `json:"author_name"`
	AuthorEmail         string              `json:"author_email"`
	Tags                []string            `json:"tags"`
	CollaborationStatus CollaborationStatus `json:"collaboration_status,omitempty"`
	Collaborators       []Collaborator      `json:"collaborators"`
	// Likes and Comments are derived from the engagement log on read.
	Likes     int       `json:"likes"`
	Comments  int       `json:"comments"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasCollaborator reports whether userID is already listed.
func (i *Idea) HasCollaborator(userID string) bool {
	for _, c := range i.Collaborators {
		if c.UserID == userID {
			return true
		}
	}
	return false
}

// Collaborator is an accepted requester, copied from the request.
type Collaborator struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	GitHub   string `json:"github,omitempty"`
	LinkedIn string `json:"linkedin,omitempty"`
}

// NewIdea is the input to idea creation.
type NewIdea struct {
	Title               string              `json:"title"`
	Description         string              `json:"description"`
	Category            Category            `json:"category"`
	AuthorID            string              `json:"author_id"`
	AuthorName          string              `json:"author_name"`
	AuthorEmail         string              `json:"author_email"`
	Tags                []string            `json:"tags"`
	CollaborationStatus CollaborationStatus `json:"collaboration_status,omitempty"`
}

// IdeaPatch holds the fields an author may change. Nil means unchanged.
type IdeaPatch struct {
	Title               *string              `json:"title,omitempty"`
	Description         *string              `json:"description,omitempty"`
	Category            *Category            `json:"category,omitempty"`
	Tags                *[]string            `json:"tags,omitempty"`
	CollaborationStatus *CollaborationStatus `json:"collaboration_status,omitempty"`
}

// Filters select and order a feed.
type Filters struct {
	Category Category   `json:"category,omitempty"`
	Search   string     `json:"search,omitempty"`
	SortBy   SortOption `json:"sort_by,omitempty"`
}

// Like is one user's like on an idea.
type Like struct {
	IdeaID  string    `json:"idea_id"`
	UserID  string    `json:"user_id"`
	LikedAt time.Time `json:"liked_at"`
}

// Comment is an entry in an idea's comment log.
type Comment struct {
	ID         string    `json:"id"`
	IdeaID     string    `json:"idea_id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

// CollaborationRequest asks an idea's author to add the requester as collaborator.
type CollaborationRequest struct {
	ID                string        `json:"id"`
	IdeaID            string        `json:"idea_id"`
	RequesterID       string        `json:"requester_id"`
	RequesterName     string        `json:"requester_name"`
	RequesterEmail    string        `json:"requester_email"`
	RequesterGitHub   string        `json:"requester_github,omitempty"`
	RequesterLinkedIn string        `json:"requester_linkedin,omitempty"`
	Status            RequestStatus `json:"status"`
	CreatedAt         time.Time     `json:"created_at"`
}

// Collaborator converts the requester fields into a collaborator entry.
func (r *CollaborationRequest) Collaborator() Collaborator {
	return Collaborator{
		UserID:   r.RequesterID,
		Name:     r.RequesterName,
		Email:    r.RequesterEmail,
		GitHub:   r.RequesterGitHub,
		LinkedIn: r.RequesterLinkedIn,
	}
}

// UserProfile holds the user-facing attributes of an account.
type UserProfile struct {
	UID         string      `json:"uid"`
	Email       string      `json:"email"`
	DisplayName string      `json:"display_name"`
	GitHub      string      `json:"github,omitempty"`
	LinkedIn    string      `json:"linkedin,omitempty"`
	Twitter     string      `json:"twitter,omitempty"`
	Website     string      `json:"website,omitempty"`
	GitHubLink  *GitHubLink `json:"github_link,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// ProfileFields is a profile edit. Nil means unchanged.
type ProfileFields struct {
	DisplayName *string `json:"display_name,omitempty"`
	GitHub      *string `json:"github,omitempty"`
	LinkedIn    *string `json:"linkedin,omitempty"`
	Twitter     *string `json:"twitter,omitempty"`
	Website     *string `json:"website,omitempty"`
}

// GitHubLink is the GitHub account data captured when a user links GitHub.
type GitHubLink struct {
	Username    string       `json:"username"`
	Name        string       `json:"name,omitempty"`
	Bio         string       `json:"bio,omitempty"`
	AvatarURL   string       `json:"avatar_url,omitempty"`
	URL         string       `json:"url"`
	Location    string       `json:"location,omitempty"`
	Company     string       `json:"company,omitempty"`
	Blog        string       `json:"blog,omitempty"`
	Followers   int          `json:"followers"`
	Following   int          `json:"following"`
	PublicRepos int          `json:"public_repos"`
	Repos       []GitHubRepo `json:"repos,omitempty"`
	LinkedAt    time.Time    `json:"linked_at"`
}

// GitHubRepo is a short summary of a repository.
type GitHubRepo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url"`
	Language    string `json:"language,omitempty"`
	Stars       int    `json:"stars"`
	Forks       int    `json:"forks"`
}
