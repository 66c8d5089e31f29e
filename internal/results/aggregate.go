// Package results folds raw per-project answers into chart-ready series. The
// whole path is pure: it allocates, never mutates its inputs and does no I/O,
// so it is safe to run concurrently over the same rows.
package results

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/suporte-lab/app-sub000/db"
)

type Mode string

const (
	ModeTotal      Mode = "total"
	ModePercentage Mode = "percentage"
)

const dateLayout = "02/01/2006"

// Selection restricts which answers feed the aggregation. Zero values mean
// "no restriction", except QuestionID, which is required: the engine charts
// exactly one question at a time.
type Selection struct {
	ResearchIDs    []int
	ProjectIDs     []int
	CategoryIDs    []int
	MunicipalityID int
	QuestionID     int
	Mode           Mode
}

// Aggregate reduces result rows into one series point per research wave date.
// For a number question, answer values are summed per (date, category name);
// for every other type each literal answer value is its own bucket and the
// value is a count of occurrences. Each point carries the dd/mm/yyyy date
// under "name" and one key per bucket, which is what the chart layer consumes.
// An empty selection yields an empty (non-nil) slice.
func Aggregate(rows []db.ResultRow, sel Selection) []map[string]interface{} {
	researchSet := toSet(sel.ResearchIDs)
	projectSet := toSet(sel.ProjectIDs)
	categorySet := toSet(sel.CategoryIDs)

	buckets := map[string]map[string]float64{}
	dates := map[string]time.Time{}

	for _, r := range rows {
		if r.QuestionID != sel.QuestionID {
			continue
		}
		if researchSet != nil && !researchSet[r.ResearchID] {
			continue
		}
		if projectSet != nil && !projectSet[r.ProjectID] {
			continue
		}
		if categorySet != nil && !categorySet[r.CategoryID] {
			continue
		}
		if sel.MunicipalityID != 0 && r.MunicipalityID != sel.MunicipalityID {
			continue
		}

		dateKey := r.ResearchDate.Format(dateLayout)
		if _, ok := buckets[dateKey]; !ok {
			buckets[dateKey] = map[string]float64{}
			dates[dateKey] = r.ResearchDate
		}
		if r.QuestionType == db.QuestionNumber {
			n, err := strconv.ParseFloat(r.Answer, 64)
			if err != nil {
				continue
			}
			buckets[dateKey][r.CategoryName] += n
		} else {
			buckets[dateKey][r.Answer]++
		}
	}

	if sel.Mode == ModePercentage {
		normalize(buckets)
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return dates[keys[i]].Before(dates[keys[j]]) })

	series := make([]map[string]interface{}, 0, len(keys))
	for _, dateKey := range keys {
		point := map[string]interface{}{"name": dateKey}
		for bucket, value := range buckets[dateKey] {
			point[bucket] = value
		}
		series = append(series, point)
	}
	return series
}

// normalize rescales each date's buckets to sum to 100. Totals come from the
// accumulated raw buckets, never from already-normalized values.
func normalize(buckets map[string]map[string]float64) {
	for _, byBucket := range buckets {
		var total float64
		for _, v := range byBucket {
			total += v
		}
		if total == 0 {
			continue
		}
		for k, v := range byBucket {
			byBucket[k] = math.Round(v/total*1000) / 10
		}
	}
}

func toSet(ids []int) map[int]bool {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[int]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
