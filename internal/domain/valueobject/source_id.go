package valueobject

// SourceID идентификатор логического источника данных
type SourceID string

const (
	SourceRCASummary      SourceID = "rca.summary"
	SourceRCAGraph        SourceID = "rca.graph"
	SourceRCASupplierRisk SourceID = "rca.supplier_risk"
	SourceRCAHeatmap      SourceID = "rca.heatmap"

	SourceUEBASummary     SourceID = "ueba.summary"
	SourceUEBARanking     SourceID = "ueba.ranking"
	SourceUEBAProfile     SourceID = "ueba.profile"
	SourceUEBAExplanation SourceID = "ueba.explanation"
	SourceUEBATrend       SourceID = "ueba.trend"
)

func (s SourceID) String() string {
	return string(s)
}

// RCASources источники RCA экрана, опрашиваемые по расписанию
func RCASources() []SourceID {
	return []SourceID{SourceRCASummary, SourceRCAGraph, SourceRCASupplierRisk, SourceRCAHeatmap}
}

// UEBAPolledSources опрашиваемые источники UEBA экрана
func UEBAPolledSources() []SourceID {
	return []SourceID{SourceUEBASummary, SourceUEBARanking}
}

// UEBAAgentSources источники, зависящие от выбранного агента
func UEBAAgentSources() []SourceID {
	return []SourceID{SourceUEBAProfile, SourceUEBAExplanation, SourceUEBATrend}
}
