package report

import (
	"github.com/spherical/autoslides/internal/config"
	"github.com/spherical/autoslides/internal/domain"
)

// ExportRequest is the JSON body of a dashboard PDF export.
type ExportRequest struct {
	ReportID        string        `json:"reportId"`
	PageIDs         []string      `json:"pageIds"`
	PageNames       []string      `json:"pageNames"`
	ReportName      string        `json:"reportName"`
	PrintBackground bool          `json:"printBackground"`
	PDFPassword     string        `json:"pdfPassword"`
	AddReportLink   bool          `json:"addReportLink"`
	Width           int           `json:"width"`
	Height          int           `json:"height"`
	ReportState     ReportState   `json:"reportState"`
	PageSettings    []PageSetting `json:"pageSettings"`
}

// ReportState carries the control overrides applied before rendering.
type ReportState struct {
	StateDeltas                  []StateDelta  `json:"stateDeltas"`
	PageID                       string        `json:"pageId"`
	DatasourceParameterOverrides []interface{} `json:"datasourceParameterOverrides"`
}

// StateDelta sets the value of one dashboard control.
type StateDelta struct {
	Interactions []Interaction `json:"interactions"`
	ComponentID  string        `json:"componentId"`
}

// Interaction is either a filter selection or a date range selection.
type Interaction struct {
	BehaviorType         string                `json:"behaviorType,omitempty"`
	FilterParameterValue *FilterParameterValue `json:"filterParameterValue,omitempty"`
	DateParameterValue   *DateParameterValue   `json:"dateParameterValue,omitempty"`
}

type FilterParameterValue struct {
	FilterDefinition FilterDefinition `json:"filterDefinition"`
}

type FilterDefinition struct {
	FilterExpression FilterExpression `json:"filterExpression"`
}

type FilterExpression struct {
	Include                 bool                    `json:"include"`
	ConceptType             int                     `json:"conceptType"`
	Concept                 Concept                 `json:"concept"`
	QueryTimeTransformation QueryTimeTransformation `json:"queryTimeTransformation"`
	FilterConditionType     string                  `json:"filterConditionType"`
	StringValues            []string                `json:"stringValues"`
}

type Concept struct {
	Name string `json:"name"`
	NS   string `json:"ns"`
}

type QueryTimeTransformation struct {
	DataTransformation DataTransformation `json:"dataTransformation"`
}

type DataTransformation struct {
	SourceFieldName string `json:"sourceFieldName"`
}

type DateParameterValue struct {
	DateRange DateAnchors `json:"dateRange"`
}

type DateAnchors struct {
	StartAnchor string `json:"startAnchor"`
	EndAnchor   string `json:"endAnchor"`
	DX          string `json:"dX"`
}

// PageSetting sizes one exported page.
type PageSetting struct {
	PageID string `json:"pageId"`
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// BuildExportRequest assembles the export body for one work item: the brand
// and country controls are set to the item's brand and venture, and the date
// control to the item's range.
func BuildExportRequest(cfg config.ReportConfig, item domain.WorkItem) ExportRequest {
	start, end := item.Range.Compact()
	f := cfg.Filters

	req := ExportRequest{
		ReportID:        cfg.ReportID,
		ReportName:      cfg.ReportName,
		PrintBackground: true,
		PDFPassword:     "",
		AddReportLink:   false,
		Width:           cfg.Width,
		Height:          cfg.Height,
		ReportState: ReportState{
			StateDeltas: []StateDelta{
				filterDelta(f.BrandComponent, f.BrandConcept, f.BrandField, item.Brand),
				filterDelta(f.CountryComponent, f.CountryConcept, f.CountryField, item.Venture),
				{
					Interactions: []Interaction{{
						DateParameterValue: &DateParameterValue{DateRange: DateAnchors{
							StartAnchor: start,
							EndAnchor:   end,
							DX:          f.DateComponent,
						}},
					}},
					ComponentID: f.DateComponent,
				},
			},
			PageID:                       "",
			DatasourceParameterOverrides: []interface{}{},
		},
	}

	for _, p := range cfg.Pages {
		req.PageIDs = append(req.PageIDs, p.ID)
		req.PageNames = append(req.PageNames, p.Name)
		req.PageSettings = append(req.PageSettings, PageSetting{
			PageID: p.ID,
			Name:   p.Name,
			Width:  cfg.PageWidth,
			Height: cfg.PageHeight,
		})
	}

	return req
}

func filterDelta(component, concept, field, value string) StateDelta {
	return StateDelta{
		Interactions: []Interaction{{
			BehaviorType: "onSelect",
			FilterParameterValue: &FilterParameterValue{FilterDefinition: FilterDefinition{
				FilterExpression: FilterExpression{
					Include:     true,
					ConceptType: 0,
					Concept:     Concept{Name: concept, NS: "t0"},
					QueryTimeTransformation: QueryTimeTransformation{
						DataTransformation: DataTransformation{SourceFieldName: field},
					},
					FilterConditionType: "IN",
					StringValues:        []string{value},
				},
			}},
		}},
		ComponentID: component,
	}
}
