package common

import (
	"regexp"
	"strconv"
	"strings"
)

// SalaryRange is a parsed monthly salary range in yuan.
//
// Grammar (deterministic, recorded here as the reference):
//
//	range   := [¥] num [unit] ( "-" | "~" | "～" ) num [unit] [months]
//	        |  [¥] num [unit] ("以上" | "+")
//	num     := digits [ "." digits ]
//	unit    := "K" | "k" | "千" (x1000) | "万" | "W" | "w" (x10000) | "元"
//	months  := "·" digits "薪"
//
// A unit on the upper bound applies to both bounds when the lower bound has
// none. Bare numbers below 1000 are assumed to be in K. "以上" forms expand
// to [n, 1.5n]. "面议" and anything unparseable yield Valid=false, which the
// matcher treats as neutral.
type SalaryRange struct {
	MinMonthly float64 `json:"min_monthly"`
	MaxMonthly float64 `json:"max_monthly"`
	Months     int     `json:"months"` // Annual salary months, e.g. 13 for "13薪" (0 = unspecified)
	Valid      bool    `json:"valid"`
}

var (
	salaryRangeRe = regexp.MustCompile(`(?i)^¥?\s*(\d+(?:\.\d+)?)\s*(k|千|万|w|元)?\s*[-~～]\s*(\d+(?:\.\d+)?)\s*(k|千|万|w|元)?`)
	salaryAboveRe = regexp.MustCompile(`(?i)^¥?\s*(\d+(?:\.\d+)?)\s*(k|千|万|w|元)?\s*(以上|\+)`)
	salaryMonthRe = regexp.MustCompile(`[·•](\d+)薪`)
)

// ParseSalary parses a raw salary string like "15-25K·13薪" into a monthly
// range. Unparseable input returns a zero range with Valid=false.
func ParseSalary(raw string) SalaryRange {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.Contains(raw, "面议") {
		return SalaryRange{}
	}

	months := 0
	if m := salaryMonthRe.FindStringSubmatch(raw); m != nil {
		months, _ = strconv.Atoi(m[1])
	}

	if m := salaryRangeRe.FindStringSubmatch(raw); m != nil {
		lo, _ := strconv.ParseFloat(m[1], 64)
		hi, _ := strconv.ParseFloat(m[3], 64)

		loUnit, hiUnit := m[2], m[4]
		if loUnit == "" {
			loUnit = hiUnit
		}

		lo = applyUnit(lo, loUnit)
		hi = applyUnit(hi, hiUnit)

		if lo <= 0 || hi < lo {
			return SalaryRange{}
		}
		return SalaryRange{MinMonthly: lo, MaxMonthly: hi, Months: months, Valid: true}
	}

	if m := salaryAboveRe.FindStringSubmatch(raw); m != nil {
		lo, _ := strconv.ParseFloat(m[1], 64)
		lo = applyUnit(lo, m[2])
		if lo <= 0 {
			return SalaryRange{}
		}
		return SalaryRange{MinMonthly: lo, MaxMonthly: lo * 1.5, Months: months, Valid: true}
	}

	return SalaryRange{}
}

func applyUnit(n float64, unit string) float64 {
	switch strings.ToLower(unit) {
	case "k", "千":
		return n * 1000
	case "万", "w":
		return n * 10000
	case "元":
		return n
	default:
		// Bare numbers below 1000 are salary-in-K shorthand
		if n < 1000 {
			return n * 1000
		}
		return n
	}
}

// Overlap returns the fraction of this range covered by the other range,
// in [0,1]. Either range being invalid yields 0.
func (r SalaryRange) Overlap(other SalaryRange) float64 {
	if !r.Valid || !other.Valid {
		return 0
	}

	lo := r.MinMonthly
	if other.MinMonthly > lo {
		lo = other.MinMonthly
	}
	hi := r.MaxMonthly
	if other.MaxMonthly < hi {
		hi = other.MaxMonthly
	}
	if hi <= lo {
		return 0
	}

	width := r.MaxMonthly - r.MinMonthly
	if width <= 0 {
		return 1
	}
	return (hi - lo) / width
}
