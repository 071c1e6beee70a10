// Package geo imports municipality centroids from IBGE boundary shapefiles.
// Centroids backfill notification rows that arrive without coordinates.
package geo

import (
	"context"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/epiwatch/leishdash/internal/dataset"
)

// Sink receives imported centroids, normally the snapshot store.
type Sink interface {
	UpsertCentroids(ctx context.Context, centroids []dataset.Centroid) (int, error)
}

// IBGE shapefiles have used both naming generations for the municipality
// code and name fields.
var (
	codeFields = []string{"CD_MUN", "CD_GEOCMU"}
	nameFields = []string{"NM_MUN", "NM_MUNICIP"}
)

// ImportCentroids reads a municipality boundary shapefile, computes the
// centroid of each polygon, and upserts the results into the sink.
func ImportCentroids(ctx context.Context, sink Sink, shpPath string) (int, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return 0, eris.Wrapf(err, "geo: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	codeIdx := firstFieldIndex(reader, codeFields)
	nameIdx := firstFieldIndex(reader, nameFields)
	if codeIdx < 0 || nameIdx < 0 {
		return 0, eris.New("geo: municipality code/name fields not found in shapefile")
	}

	log := zap.L().With(zap.String("component", "geo.centroids"))

	var centroids []dataset.Centroid
	var skipped int
	for reader.Next() {
		if err := ctx.Err(); err != nil {
			return 0, eris.Wrap(err, "geo: import cancelled")
		}

		_, shape := reader.Shape()
		code := strings.Trim(reader.Attribute(codeIdx), " \x00")
		name := strings.Trim(reader.Attribute(nameIdx), " \x00")
		if code == "" || shape == nil {
			skipped++
			continue
		}

		lat, lon, ok := shapeCentroid(shape)
		if !ok {
			log.Debug("skipping shape without computable centroid", zap.String("code", code))
			skipped++
			continue
		}

		centroids = append(centroids, dataset.Centroid{
			MunicipalityID: code,
			Name:           name,
			Lat:            lat,
			Lon:            lon,
		})
	}

	n, err := sink.UpsertCentroids(ctx, centroids)
	if err != nil {
		return n, eris.Wrap(err, "geo: store centroids")
	}

	log.Info("centroids imported",
		zap.Int("stored", n),
		zap.Int("skipped", skipped),
		zap.String("shapefile", shpPath),
	)
	return n, nil
}

// shapeCentroid computes the (lat, lon) centroid of a shapefile shape.
func shapeCentroid(s shp.Shape) (float64, float64, bool) {
	switch shape := s.(type) {
	case *shp.Point:
		return shape.Y, shape.X, true
	case *shp.Polygon:
		g := polygonToMultiPolygon(shape)
		if g == nil {
			return 0, 0, false
		}
		c, err := xy.Centroid(g)
		if err != nil || len(c) < 2 {
			return 0, 0, false
		}
		return c[1], c[0], true
	default:
		return 0, 0, false
	}
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
func polygonToMultiPolygon(p *shp.Polygon) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		var end int32
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		} else {
			end = int32(len(p.Points))
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		ring := geom.NewLinearRingFlat(geom.XY, flat)
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("geo: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("geo: skipping malformed polygon", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// firstFieldIndex returns the index of the first matching field name, or -1.
func firstFieldIndex(reader *shp.Reader, names []string) int {
	for _, name := range names {
		for i, f := range reader.Fields() {
			if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
				return i
			}
		}
	}
	return -1
}
