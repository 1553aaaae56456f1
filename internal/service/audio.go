package service

import (
	"fmt"
	"strings"

	"github.com/aliskhannn/quran-companion/internal/domain/entities"
)

// AudioAddress derives recitation URLs from global verse numbers.
type AudioAddress struct {
	BaseURL string // e.g. https://cdn.islamic.network/quran/audio
	Bitrate int    // kbps
	Reciter string // audio edition, e.g. ar.alafasy
}

// URL returns the address of the recitation of verse n.
func (a AudioAddress) URL(n int) string {
	return fmt.Sprintf("%s/%d/%s/%d.mp3", strings.TrimRight(a.BaseURL, "/"), a.Bitrate, a.Reciter, n)
}

// Source returns the playable resource of verse n.
func (a AudioAddress) Source(n int) (AudioSource, error) {
	if !entities.ValidVerseNumber(n) {
		return AudioSource{}, fmt.Errorf("verse %d: %w", n, entities.ErrInvalidReference)
	}
	return AudioSource{VerseNumber: n, URL: a.URL(n)}, nil
}
