package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/fgrng/yourmoment/internal/domain"
)

// ArticleSummary is one entry from the articles-index page. category_id
// and task_id are intentionally absent here: the index page does not
// reliably expose them, so they stay unresolved until FetchArticle reads
// the detail page.
type ArticleSummary struct {
	ID         string
	Title      string
	Author     string
	Date       string
	Status     string
	Visibility string
	URL        string
}

// ArticleDetail is the full article content plus posting prerequisites.
type ArticleDetail struct {
	Title       string
	Author      string
	CategoryID  *int
	TaskID      *int
	ContentText string
	ContentHTML string
	CommentCSRF string
}

var articleHrefRe = regexp.MustCompile(`^/article/(\d+)/?`)

// tabSelector returns the CSS id selector for the given tab ("home",
// "alle", or a classroom id string).
func tabSelector(tab string) string {
	if tab == "" {
		tab = "home"
	}
	return "#pills-" + tab
}

// DiscoverArticles parses the articles-index HTML for the given filter,
// returning at most limit summaries in the order the upstream index page
// lists them. Category and task filters are applied server-side via query
// parameters; a title-substring search is applied client-side since the
// upstream platform does not support it as a query parameter.
func (s *Session) DiscoverArticles(ctx context.Context, filter domain.ArticleFilter, limit int) ([]ArticleSummary, error) {
	if !s.IsAuthenticated {
		return nil, ErrNotAuthenticated
	}
	if limit <= 0 {
		limit = 20
	}

	tab := filter.Tab
	if tab == "" {
		tab = "home"
	}

	q := url.Values{}
	q.Set("tab", tab)
	if filter.Category != "" {
		q.Set("kategorie", filter.Category)
	}
	if filter.Task != "" {
		q.Set("aufgabe", filter.Task)
	}
	if filter.Sort != "" {
		q.Set("sort", filter.Sort)
	}

	path := "/articles/?" + q.Encode()

	doc, _, err := s.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: discover articles: %v", ErrScraping, err)
	}

	sel := tabSelector(filter.Tab)
	var summaries []ArticleSummary
	doc.Find(sel).Find(".col-xl-4.mb-4").EachWithBreak(func(_ int, card *goquery.Selection) bool {
		if len(summaries) >= limit {
			return false
		}
		sum, ok := parseArticleCard(card)
		if !ok {
			return true
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(sum.Title), strings.ToLower(filter.Search)) {
			return true
		}
		summaries = append(summaries, sum)
		return true
	})

	return summaries, nil
}

func parseArticleCard(card *goquery.Selection) (ArticleSummary, bool) {
	href, ok := card.Find("a[href^='/article/']").First().Attr("href")
	if !ok {
		return ArticleSummary{}, false
	}
	m := articleHrefRe.FindStringSubmatch(href)
	if m == nil {
		return ArticleSummary{}, false
	}

	status := ""
	card.Find(".card-header").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		classes, _ := h.Attr("class")
		for _, token := range strings.Fields(classes) {
			switch token {
			case "entwurf", "lehrpersonenkontrolle", "publiziert":
				status = token
				return false
			}
		}
		return true
	})

	return ArticleSummary{
		ID:         m[1],
		Title:      strings.TrimSpace(card.Find(".article-title").First().Text()),
		Author:     strings.TrimSpace(card.Find(".article-author").First().Text()),
		Date:       strings.TrimSpace(card.Find(".article-date").First().Text()),
		Status:     status,
		Visibility: strings.TrimSpace(card.Find(".article-classroom").First().Text()),
		URL:        href,
	}, true
}

// FetchArticle retrieves an article's detail page: title, content, the
// category/task it was written under, cleaned raw HTML and the CSRF
// token required to post a comment. category_id and task_id are always
// null on the articles index, so every caller resolves them here instead.
func (s *Session) FetchArticle(ctx context.Context, articleID string) (*ArticleDetail, error) {
	if !s.IsAuthenticated {
		return nil, ErrNotAuthenticated
	}

	doc, _, err := s.do(ctx, http.MethodGet, "/article/"+articleID+"/", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch article %s: %v", ErrScraping, articleID, err)
	}

	title, author := parseTitleAndAuthor(doc)

	var paragraphs []string
	doc.Find(".article .highlight-target p").Each(func(_ int, p *goquery.Selection) {
		text := strings.TrimSpace(p.Text())
		if text != "" {
			paragraphs = append(paragraphs, text)
		}
	})

	articleNode := doc.Find("div.article").First().Clone()
	articleNode.Find("textarea").Remove()
	rawHTML, err := articleNode.Html()
	if err != nil {
		return nil, fmt.Errorf("%w: serialize article html: %v", ErrScraping, err)
	}

	csrf, _ := doc.Find(`form[action^="/article/"][action$="/comment/"] input[name=csrfmiddlewaretoken]`).Attr("value")

	categoryID, taskID := parseCategoryAndTask(doc)

	return &ArticleDetail{
		Title:       title,
		Author:      author,
		CategoryID:  categoryID,
		TaskID:      taskID,
		ContentText: strings.Join(paragraphs, "\n\n"),
		ContentHTML: rawHTML,
		CommentCSRF: csrf,
	}, nil
}

// parseCategoryAndTask reads the "Kategorie: …" / "Aufgabe: …" list items
// from an article's detail page and resolves each display name back to
// its id via the closed category/task mapping.
func parseCategoryAndTask(doc *goquery.Document) (categoryID, taskID *int) {
	doc.Find("li.list-group-item").Each(func(_ int, li *goquery.Selection) {
		text := strings.TrimSpace(li.Text())
		switch {
		case strings.HasPrefix(text, "Kategorie:"):
			name := strings.TrimSpace(strings.TrimPrefix(text, "Kategorie:"))
			if id := categoryIDByName(name); id != nil {
				categoryID = id
			}
		case strings.HasPrefix(text, "Aufgabe:"):
			name := strings.TrimSpace(strings.TrimPrefix(text, "Aufgabe:"))
			if id := taskIDByName(name); id != nil {
				taskID = id
			}
		}
	})
	return categoryID, taskID
}

// parseTitleAndAuthor reads the <h1> title and, when no dedicated author
// element is present, falls back to splitting "<title> von <author>".
func parseTitleAndAuthor(doc *goquery.Document) (title, author string) {
	h1 := strings.TrimSpace(doc.Find("h1").First().Text())
	if idx := strings.Index(h1, " von "); idx >= 0 {
		return strings.TrimSpace(h1[:idx]), strings.TrimSpace(h1[idx+len(" von "):])
	}
	return h1, ""
}

// PostComment submits an AI-generated comment against an article using
// the CSRF token obtained from FetchArticle. status=20 and the optional
// hide flag match the upstream platform's comment-form contract.
func (s *Session) PostComment(ctx context.Context, articleID, commentCSRF, commentText string, highlight string, hidden bool) error {
	if !s.IsAuthenticated {
		return ErrNotAuthenticated
	}

	form := url.Values{}
	form.Set("csrfmiddlewaretoken", commentCSRF)
	form.Set("text", commentText)
	form.Set("status", "20")
	if highlight != "" {
		form.Set("highlight", highlight)
	}
	if hidden {
		form.Set("hide", "on")
	}

	_, resp, err := s.do(ctx, http.MethodPost, "/article/"+articleID+"/comment/", strings.NewReader(form.Encode()), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
		"Referer":      s.resolve("/article/" + articleID + "/"),
	})
	if err != nil {
		return fmt.Errorf("%w: post comment on article %s: %v", ErrScraping, articleID, err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: post comment on article %s: upstream status %d", ErrScraping, articleID, resp.StatusCode)
	}
	return nil
}

// CategoryIDFromQuery parses the "kategorie" query parameter back into an
// int, used when a filter's category must round-trip to an id for
// storage (the filter itself is carried as a string to match the
// upstream query parameter shape).
func CategoryIDFromQuery(raw string) *int {
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &n
}

// TaskIDFromQuery parses the "aufgabe" query parameter back into an int,
// the task counterpart of CategoryIDFromQuery.
func TaskIDFromQuery(raw string) *int {
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &n
}
