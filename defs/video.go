package defs

import (
	"fmt"
	"math/rand"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

const (
	roomSuffixLen = 8
	base36        = "0123456789abcdefghijklmnopqrstuvwxyz"
)

type Video struct {
	Id        int    `yaml:"id" json:"id"`
	Title     string `yaml:"title" json:"title"`
	Url       string `yaml:"url" json:"url"`
	Thumbnail string `yaml:"thumbnail,omitempty" json:"thumbnail,omitempty"`

	// room names for this video start with it
	Prefix string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
}

type Catalog []*Video

func DefaultCatalog() Catalog {
	return Catalog{
		{
			Id:        1,
			Title:     "Big Buck Bunny Trailer",
			Url:       "https://storage.googleapis.com/gtv-videos-bucket/sample/BigBuckBunny.mp4",
			Thumbnail: "http://commondatastorage.googleapis.com/gtv-videos-bucket/sample/images/BigBuckBunny.jpg?ixlib=rb-1.2.1&auto=format&fit=crop&w=400&q=80",
			Prefix:    "movie",
		},
		{
			Id:        2,
			Title:     "Warriors vs Mavericks",
			Url:       "https://cerebrium-assets.s3.eu-west-1.amazonaws.com/basketball-game.mp4",
			Thumbnail: "https://cerebrium-assets.s3.eu-west-1.amazonaws.com/basketball-thumbnail.png",
			Prefix:    "basketball",
		},
	}
}

type catalogFile struct {
	Videos Catalog `yaml:"videos"`
}

// LoadCatalog reads a yaml file with a top-level "videos" list.
// An empty path gives DefaultCatalog.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	cont, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f catalogFile
	if err = yaml.Unmarshal(cont, &f); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	if err = f.Videos.validate(); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return f.Videos, nil
}

func (c Catalog) validate() error {
	if len(c) == 0 {
		return fmt.Errorf("no videos")
	}
	seen := make(map[int]bool)
	for i, v := range c {
		if v == nil {
			return fmt.Errorf("video entry %d is empty", i+1)
		}
		if v.Url == "" {
			return fmt.Errorf("video %d has no url", v.Id)
		}
		if seen[v.Id] {
			return fmt.Errorf("duplicate video id %d", v.Id)
		}
		seen[v.Id] = true
		if v.Prefix == "" {
			v.Prefix = "video"
		}
	}
	return nil
}

func (c Catalog) Find(id int) (*Video, error) {
	for _, v := range c {
		if v.Id == id {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownVideo, id)
}

func (c Catalog) First() *Video {
	if len(c) == 0 {
		return nil
	}
	return c[0]
}

// NewRoomName gives "<prefix>-<8 random base36 chars>".
func NewRoomName(v *Video) string {
	var sb strings.Builder
	sb.WriteString(v.Prefix)
	sb.WriteByte('-')
	for i := 0; i < roomSuffixLen; i++ {
		sb.WriteByte(base36[rand.Intn(len(base36))])
	}
	return sb.String()
}
