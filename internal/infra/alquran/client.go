// Package alquran implements the verse data provider on top of the
// api.alquran.cloud REST API.
package alquran

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aliskhannn/quran-companion/internal/domain/entities"
)

const DefaultBaseURL = "https://api.alquran.cloud/v1"

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for baseURL. A nil httpClient means a default client;
// deadlines come from the request context.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// envelope is the wrapper every endpoint responds with.
type envelope struct {
	Code   int             `json:"code"`
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type surah struct {
	Number                 int    `json:"number"`
	Name                   string `json:"name"`
	EnglishName            string `json:"englishName"`
	EnglishNameTranslation string `json:"englishNameTranslation"`
	NumberOfAyahs          int    `json:"numberOfAyahs"`
	RevelationType         string `json:"revelationType"`
}

type ayah struct {
	Number        int    `json:"number"`
	Text          string `json:"text"`
	NumberInSurah int    `json:"numberInSurah"`
	Surah         *surah `json:"surah,omitempty"`
}

type surahDetail struct {
	surah
	Ayahs []ayah `json:"ayahs"`
}

type searchData struct {
	Count   int    `json:"count"`
	Matches []ayah `json:"matches"`
}

func (s surah) toEntity() entities.Chapter {
	return entities.Chapter{
		Number:                 s.Number,
		Name:                   s.Name,
		EnglishName:            s.EnglishName,
		EnglishNameTranslation: s.EnglishNameTranslation,
		VerseCount:             s.NumberOfAyahs,
		RevelationType:         s.RevelationType,
	}
}

// ListChapters returns the reference data of all chapters.
func (c *Client) ListChapters(ctx context.Context) ([]entities.Chapter, error) {
	var surahs []surah
	if err := c.get(ctx, "/surah", &surahs); err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}

	chapters := make([]entities.Chapter, 0, len(surahs))
	for _, s := range surahs {
		chapters = append(chapters, s.toEntity())
	}
	return chapters, nil
}

// GetChapterText returns every verse of a chapter in the given edition.
func (c *Client) GetChapterText(ctx context.Context, chapter int, edition string) ([]entities.EditionVerse, error) {
	path := fmt.Sprintf("/surah/%d/%s", chapter, url.PathEscape(edition))

	var detail surahDetail
	if err := c.get(ctx, path, &detail); err != nil {
		return nil, fmt.Errorf("get chapter %d (%s): %w", chapter, edition, err)
	}

	verses := make([]entities.EditionVerse, 0, len(detail.Ayahs))
	for _, a := range detail.Ayahs {
		verses = append(verses, entities.EditionVerse{
			Number:          a.Number,
			Text:            a.Text,
			NumberInChapter: a.NumberInSurah,
		})
	}
	return verses, nil
}

// GetVerse returns a single verse in the given edition. Translation is left empty.
func (c *Client) GetVerse(ctx context.Context, chapter, verse int, edition string) (*entities.Verse, error) {
	path := fmt.Sprintf("/ayah/%d:%d/%s", chapter, verse, url.PathEscape(edition))

	var a ayah
	if err := c.get(ctx, path, &a); err != nil {
		return nil, fmt.Errorf("get verse %d:%d (%s): %w", chapter, verse, edition, err)
	}

	v := &entities.Verse{
		Number:          a.Number,
		Text:            a.Text,
		ChapterNumber:   chapter,
		NumberInChapter: a.NumberInSurah,
	}
	if a.Surah != nil {
		v.ChapterNumber = a.Surah.Number
	}
	return v, nil
}

// SearchKeyword runs a full-text search over all chapters of an edition.
// A search without matches yields an empty slice.
func (c *Client) SearchKeyword(ctx context.Context, text, edition string) ([]entities.VerseMatch, error) {
	path := fmt.Sprintf("/search/%s/all/%s", url.PathEscape(text), url.PathEscape(edition))

	var data searchData
	err := c.get(ctx, path, &data)
	if err != nil {
		if isNotFound(err) {
			return []entities.VerseMatch{}, nil
		}
		return nil, fmt.Errorf("search %q: %w", text, err)
	}

	matches := make([]entities.VerseMatch, 0, len(data.Matches))
	for _, m := range data.Matches {
		vm := entities.VerseMatch{
			Verse: entities.Verse{
				Number:          m.Number,
				Text:            m.Text,
				NumberInChapter: m.NumberInSurah,
			},
		}
		if m.Surah != nil {
			vm.ChapterNumber = m.Surah.Number
			vm.ChapterName = m.Surah.EnglishName
		}
		matches = append(matches, vm)
	}
	return matches, nil
}

// statusError is returned for non-200 responses.
type statusError struct {
	code int
	body string
	kind error
}

func (e *statusError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.code, e.body)
}

func (e *statusError) Unwrap() error { return e.kind }

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == http.StatusNotFound
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", entities.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		kind := entities.ErrNetworkFailure
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound {
			kind = entities.ErrInvalidReference
		}
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body)), kind: kind}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%w: decode response: %v", entities.ErrNetworkFailure, err)
	}
	if env.Code != 0 && env.Code != http.StatusOK {
		kind := entities.ErrNetworkFailure
		if env.Code == http.StatusBadRequest || env.Code == http.StatusNotFound {
			kind = entities.ErrInvalidReference
		}
		return &statusError{code: env.Code, body: env.Status, kind: kind}
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: decode data: %v", entities.ErrNetworkFailure, err)
	}

	return nil
}
