package domain

import "time"

// Blog post statuses.
const (
	BlogDraft     = "DRAFT"
	BlogPublished = "PUBLISHED"
)

// BlogPost is an article on the store's blog. Only published posts are
// visible to readers; PublishedAt is set the first time a post is
// published and kept across later unpublish/publish cycles.
type BlogPost struct {
	ID          string     `json:"id"           gorm:"type:char(36);primaryKey"`
	Slug        string     `json:"slug"         gorm:"type:varchar(160);not null;uniqueIndex:ux_blogs_slug"`
	Title       string     `json:"title"        gorm:"type:varchar(255);not null"`
	Excerpt     string     `json:"excerpt"      gorm:"type:varchar(512);not null;default:''"`
	Content     string     `json:"content"      gorm:"type:text;not null"`
	AuthorID    string     `json:"author_id"    gorm:"type:varchar(64);not null"`
	AuthorName  string     `json:"author_name"  gorm:"type:varchar(255);not null;default:''"`
	Status      string     `json:"status"       gorm:"type:varchar(16);not null;default:'DRAFT';index:idx_blogs_status_published,priority:1;check:status IN ('DRAFT','PUBLISHED')"`
	Views       int64      `json:"views"        gorm:"not null;default:0"`
	PublishedAt *time.Time `json:"published_at,omitempty" gorm:"index:idx_blogs_status_published,priority:2"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName returns the database table name for BlogPost.
func (BlogPost) TableName() string { return "blogs" }

// IsPublished reports whether readers can see the post.
func (b BlogPost) IsPublished() bool { return b.Status == BlogPublished }

// BlogComment is a signed-in reader's comment on a post. Comments go with
// their post when it is deleted.
type BlogComment struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	BlogID     string    `json:"blog_id"     gorm:"type:char(36);not null;index:idx_blog_comments_blog_created,priority:1"`
	UserID     string    `json:"user_id"     gorm:"type:varchar(64);not null"`
	AuthorName string    `json:"author_name" gorm:"type:varchar(255);not null;default:''"`
	Body       string    `json:"body"        gorm:"type:text;not null"`
	CreatedAt  time.Time `json:"created_at"  gorm:"not null;index:idx_blog_comments_blog_created,priority:2"`

	Blog BlogPost `json:"-" gorm:"foreignKey:BlogID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for BlogComment.
func (BlogComment) TableName() string { return "blog_comments" }
