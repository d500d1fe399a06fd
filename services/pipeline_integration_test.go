//go:build integration

package services

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justbri/moviesync/config"
	"github.com/justbri/moviesync/database"
	"github.com/justbri/moviesync/models"
	"github.com/justbri/moviesync/testinfra"
)

func TestPipeline_EndToEnd(t *testing.T) {
	ctx := context.Background()
	dbCfg := testinfra.StartPostgres(t)

	fake := &fakeTMDB{
		t:      t,
		export: gzipBytes(t, "{\"id\":603,\"original_title\":\"The Matrix\"}\n{\"id\":604,\"original_title\":\"The Matrix Reloaded\"}\n"),
		movies: map[string]string{
			"603": `{"id":603,"original_title":"The Matrix","release_date":"1999-03-30","runtime":136}`,
			"604": `{"id":604,"original_title":"The Matrix Reloaded","release_date":"2003-05-15","runtime":138}`,
		},
		credits: map[string]string{
			"603": `{"id":603,"cast":[{"id":6384,"name":"Keanu Reeves","character":"Neo"},{"id":2975,"name":"Laurence Fishburne","character":"Morpheus"}]}`,
			"604": `{"id":604,"cast":[{"id":6384,"name":"Keanu Reeves","character":"Neo"},{"id":9364,"name":"Monica Bellucci","character":"Persephone"}]}`,
		},
	}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	runOnce := func() {
		store, err := database.Connect(ctx, dbCfg)
		require.NoError(t, err)
		defer store.Close()

		client, err := NewTMDBClient(config.TMDBConfig{
			Token:         testToken,
			APIBaseURL:    srv.URL,
			ExportBaseURL: srv.URL,
			Timeout:       5 * time.Second,
		})
		require.NoError(t, err)

		queue := make(chan models.Packet, 50)
		writer := NewWriter(store, store, queue)
		var progress bytes.Buffer
		p := NewPipeline(client, writer, store, queue, PipelineOptions{Drain: true, Progress: &progress})

		require.NoError(t, p.Run(ctx))
		assert.Equal(t, int64(2), writer.Written())
		assert.Contains(t, progress.String(), "sender progress: 100.0000%")
	}

	// A second run over the same export must not duplicate anything.
	runOnce()
	runOnce()

	pool, err := pgxpool.New(ctx, dbCfg.DSN())
	require.NoError(t, err)
	defer pool.Close()

	count := func(table string) int {
		var n int
		require.NoError(t, pool.QueryRow(ctx, "SELECT count(*) FROM "+table).Scan(&n))
		return n
	}
	assert.Equal(t, 2, count("movies"))
	assert.Equal(t, 3, count("persons"))
	assert.Equal(t, 4, count("movie_cast"))

	rows, err := pool.Query(ctx, `
		SELECT m.tmdb_id, p.tmdb_id, mc.character_name
		FROM movie_cast mc
		JOIN movies m ON m.movie_id = mc.movie_id
		JOIN persons p ON p.person_id = mc.person_id
		ORDER BY m.tmdb_id, p.tmdb_id`)
	require.NoError(t, err)
	defer rows.Close()

	type link struct {
		movie, person int64
		character     string
	}
	var links []link
	for rows.Next() {
		var l link
		require.NoError(t, rows.Scan(&l.movie, &l.person, &l.character))
		links = append(links, l)
	}
	require.NoError(t, rows.Err())

	assert.Equal(t, []link{
		{603, 2975, "Morpheus"},
		{603, 6384, "Neo"},
		{604, 6384, "Neo"},
		{604, 9364, "Persephone"},
	}, links)
}
