package usecase

import (
	"context"
	"log/slog"

	"github.com/fairyhunter13/ai-content-publisher/internal/domain"
	"github.com/fairyhunter13/ai-content-publisher/internal/media"
	obsctx "github.com/fairyhunter13/ai-content-publisher/internal/observability"
	"github.com/fairyhunter13/ai-content-publisher/internal/publish"
)

// ImageRelay is satisfied by *media.Relay.
type ImageRelay interface {
	RelayImages(ctx context.Context, body string, site domain.Site, contentID string) (media.Relayed, error)
}

// Publisher is satisfied by *publish.Cascade.
type Publisher interface {
	Publish(ctx context.Context, p publish.Payload, site domain.Site) publish.Result
}

// PublishSettings overrides the site defaults for one publish.
type PublishSettings struct {
	Status     string
	Categories []int64
	SkipImages bool
}

// PublishReport is what callers see for one article.
type PublishReport struct {
	ArticleID       string         `json:"article_id"`
	SiteID          string         `json:"site_id"`
	Result          publish.Result `json:"result"`
	FeaturedMediaID *int64         `json:"featured_media_id,omitempty"`
	ImagesUploaded  int            `json:"images_uploaded"`
	ImagesFailed    int            `json:"images_failed"`
	Message         string         `json:"message,omitempty"`
}

// PublishService sends stored articles to a site.
type PublishService struct {
	Articles  domain.ArticleRepository
	Sites     domain.SiteRepository
	Images    ImageRelay
	Publisher Publisher
}

// NewPublishService constructs a PublishService with its dependencies.
func NewPublishService(a domain.ArticleRepository, s domain.SiteRepository, img ImageRelay, p Publisher) PublishService {
	return PublishService{Articles: a, Sites: s, Images: img, Publisher: p}
}

// Publish relays the article's images, runs the cascade and stores the
// outcome. The report is filled even when an error is returned; the error
// is the result's domain sentinel for warning and error outcomes.
func (s PublishService) Publish(ctx domain.Context, owner, articleID, siteID string, st PublishSettings) (PublishReport, error) {
	article, err := s.Articles.Get(ctx, owner, articleID)
	if err != nil {
		return PublishReport{}, err
	}
	site, err := s.Sites.Get(ctx, owner, siteID)
	if err != nil {
		return PublishReport{}, err
	}
	lg := obsctx.LoggerFromContext(ctx).With(slog.String("article_id", articleID), slog.String("site_id", siteID))
	report := PublishReport{ArticleID: articleID, SiteID: siteID}

	body := article.Content
	if s.Images != nil && !st.SkipImages {
		relayed, err := s.Images.RelayImages(ctx, body, site, articleID)
		if err != nil {
			// images never block publishing
			lg.Warn("image relay failed, publishing original body", slog.Any("error", err))
		} else {
			body = relayed.HTML
			report.FeaturedMediaID = relayed.FeaturedMediaID
			report.ImagesUploaded = relayed.Uploaded
			report.ImagesFailed = relayed.Failed
		}
	}

	payload := publish.Payload{
		Title:      article.Title,
		Content:    body,
		Status:     firstNonEmpty(st.Status, site.DefaultStatus, "publish"),
		Categories: st.Categories,
	}
	if len(payload.Categories) == 0 {
		payload.Categories = site.CategoryIDs
	}
	if report.FeaturedMediaID != nil {
		payload.FeaturedMedia = *report.FeaturedMediaID
	}

	res := s.Publisher.Publish(ctx, payload, site)
	report.Result = res

	article.SiteID = &site.ID
	article.PublishError = ""
	switch res.Status {
	case publish.StatusSuccess, publish.StatusDegraded:
		article.Status = domain.ArticlePublished
	case publish.StatusWarning:
		article.Status = domain.ArticleWarning
		article.PublishError = res.Detail
	default:
		article.Status = domain.ArticleFailed
		article.PublishError = res.ErrorKind.Describe()
		report.Message = res.ErrorKind.Describe()
	}
	if res.RemoteID > 0 {
		id := res.RemoteID
		article.RemoteID = &id
		article.RemoteLink = res.Link
	}
	if err := s.Articles.UpdatePublishState(ctx, article); err != nil {
		return report, err
	}
	return report, res.Err()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
