package render

import (
	"flowscope/internal/domain"

	geojson "github.com/paulmach/go.geojson"
)

// MapGeoJSON exports the resolvable portion of a dataset as a GeoJSON
// FeatureCollection: one LineString per flow with both endpoints resolved,
// one Point per located node. Entities without a resolved location are
// skipped, matching the map view's silent-degradation rule. Map clients
// (the dashboard uses a slippy-map widget) consume this directly.
func MapGeoJSON(ds *domain.Dataset, located map[string]domain.Location) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	nodeCode := make(map[string]string, len(ds.Nodes))
	for _, n := range ds.Nodes {
		nodeCode[n.ID] = normalizeCode(n.LocationCode)
	}

	endpoint := func(nodeID, bankCode string) (domain.Location, bool) {
		if code := nodeCode[nodeID]; code != "" {
			if loc, ok := located[code]; ok {
				return loc, true
			}
		}
		if code := normalizeCode(bankCode); code != "" {
			if loc, ok := located[code]; ok {
				return loc, true
			}
		}
		return domain.Location{}, false
	}

	for _, fl := range ds.Flows {
		from, okF := endpoint(fl.Source, fl.FromBank)
		to, okT := endpoint(fl.Target, fl.ToBank)
		if !okF || !okT {
			continue
		}
		f := geojson.NewLineStringFeature([][]float64{
			{from.Longitude, from.Latitude},
			{to.Longitude, to.Latitude},
		})
		f.SetProperty("source", fl.Source)
		f.SetProperty("target", fl.Target)
		f.SetProperty("amount", fl.Amount.InexactFloat64())
		f.SetProperty("risk_score", fl.Risk)
		f.SetProperty("tier", string(fl.Tier()))
		f.SetProperty("self_flow", fl.SelfLoop())
		if fl.Currency != "" {
			f.SetProperty("currency", fl.Currency)
		}
		fc.AddFeature(f)
	}

	for _, n := range ds.Nodes {
		loc, ok := located[nodeCode[n.ID]]
		if !ok {
			continue
		}
		f := geojson.NewPointFeature([]float64{loc.Longitude, loc.Latitude})
		f.SetProperty("id", n.ID)
		f.SetProperty("label", n.Label)
		f.SetProperty("avg_risk_score", n.AvgRisk)
		f.SetProperty("tier", string(n.Tier()))
		f.SetProperty("place", loc.DisplayName)
		fc.AddFeature(f)
	}

	return fc
}
