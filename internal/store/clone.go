package store

import "github.com/KaramelBytes/dataglimpse/internal/model"

// CloneRows copies rows and their maps. Cell values are scalars and are shared.
func CloneRows(rows []model.Row) []model.Row {
	if rows == nil {
		return nil
	}
	out := make([]model.Row, len(rows))
	for i, r := range rows {
		c := make(model.Row, len(r))
		for k, v := range r {
			c[k] = v
		}
		out[i] = c
	}
	return out
}

// CloneDataset returns a copy that shares no mutable state with ds.
func CloneDataset(ds *model.Dataset) *model.Dataset {
	if ds == nil {
		return nil
	}
	c := *ds
	c.Columns = append([]string(nil), ds.Columns...)
	c.ColumnTypes = make(map[string]model.ColumnType, len(ds.ColumnTypes))
	for k, v := range ds.ColumnTypes {
		c.ColumnTypes[k] = v
	}
	if ds.Summary != nil {
		c.Summary = make(map[string]model.ColumnSummary, len(ds.Summary))
		for k, v := range ds.Summary {
			c.Summary[k] = v
		}
	}
	c.OriginalRows = CloneRows(ds.OriginalRows)
	c.CleanedRows = CloneRows(ds.CleanedRows)
	c.SamplePreview = CloneRows(ds.SamplePreview)
	c.PendingConfig = ds.PendingConfig.Clone()
	c.Visualizations = append([]model.VisualizationRef(nil), ds.Visualizations...)
	return &c
}

// CloneVisualization returns a copy that shares no mutable state with v.
func CloneVisualization(v *model.Visualization) *model.Visualization {
	if v == nil {
		return nil
	}
	c := *v
	c.Config = v.Config.Clone()
	c.PreviewData = CloneRows(v.PreviewData)
	c.InsightIDs = append([]string(nil), v.InsightIDs...)
	return &c
}

// CloneSession returns a copy of s.
func CloneSession(s *model.GuestSession) *model.GuestSession {
	if s == nil {
		return nil
	}
	c := *s
	c.DatasetIDs = append([]string(nil), s.DatasetIDs...)
	return &c
}
