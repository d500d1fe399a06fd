package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/justbri/moviesync/config"
	"github.com/justbri/moviesync/logger"
	"github.com/justbri/moviesync/models"
)

var ErrInvalidToken = errors.New("invalid TMDB token")

type TMDBClient struct {
	client        *http.Client
	apiBaseURL    string
	exportBaseURL string
	now           func() time.Time
}

func NewTMDBClient(cfg config.TMDBConfig) (*TMDBClient, error) {
	transport, err := newBearerTransport(cfg.Token, nil)
	if err != nil {
		return nil, err
	}

	return &TMDBClient{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		apiBaseURL:    strings.TrimSuffix(cfg.APIBaseURL, "/"),
		exportBaseURL: strings.TrimSuffix(cfg.ExportBaseURL, "/"),
		now:           time.Now,
	}, nil
}

// LoadMovieIDs downloads and parses the nightly movie id export. It fails as a
// whole if any line is malformed.
func (c *TMDBClient) LoadMovieIDs(ctx context.Context) ([]models.MovieIDEntry, error) {
	u := exportURL(c.exportBaseURL, c.now())
	logger.Info().Str("url", u).Msg("Downloading movie id export")

	resp, err := makeRequest(ctx, c.client, u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return decodeMovieIDs(resp.Body)
}

func (c *TMDBClient) Movie(ctx context.Context, id uint64) (*models.MovieDetails, error) {
	var details models.MovieDetails
	if err := getJSON(ctx, c.client, fmt.Sprintf("%s/3/movie/%d", c.apiBaseURL, id), &details); err != nil {
		return nil, fmt.Errorf("movie %d: %w", id, err)
	}
	return &details, nil
}

func (c *TMDBClient) Cast(ctx context.Context, id uint64) (*models.Cast, error) {
	var cast models.Cast
	if err := getJSON(ctx, c.client, fmt.Sprintf("%s/3/movie/%d/credits", c.apiBaseURL, id), &cast); err != nil {
		return nil, fmt.Errorf("credits %d: %w", id, err)
	}
	return &cast, nil
}

// FetchPacket fetches details and credits for one movie.
func (c *TMDBClient) FetchPacket(ctx context.Context, id uint64) (models.Packet, error) {
	details, err := c.Movie(ctx, id)
	if err != nil {
		return models.Packet{}, err
	}
	cast, err := c.Cast(ctx, id)
	if err != nil {
		return models.Packet{}, err
	}
	return models.Packet{MovieDetails: *details, Cast: cast}, nil
}
