// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pubmed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"go.uber.org/zap"

	"github.com/pdiddy/pms/pkg/types"
)

// esearchJSON is the subset of the esearch JSON body we read.
type esearchJSON struct {
	Result struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// parseSearchResult extracts the PMID list from an esearch body. The
// parser is chosen by mode, the same mode the request asked for.
func parseSearchResult(mode types.ResponseMode, body []byte) ([]string, error) {
	switch mode {
	case types.ResponseJSON:
		var res esearchJSON
		if err := json.Unmarshal(body, &res); err != nil {
			return nil, fmt.Errorf("parsing esearch JSON: %w", err)
		}
		return res.Result.IDList, nil
	case types.ResponseXML:
		doc, err := xmlquery.Parse(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("parsing esearch XML: %w", err)
		}
		var ids []string
		for _, n := range xmlquery.Find(doc, "/*/IdList/Id") {
			if id := strings.TrimSpace(n.InnerText()); id != "" {
				ids = append(ids, id)
			}
		}
		return ids, nil
	default:
		return nil, fmt.Errorf("unsupported response mode %q", mode)
	}
}

// ParseArticles parses an efetch XML document into articles, one per
// PubmedArticle element in document order. An element that lacks a PMID
// or an Article, or that fails to parse, is logged and skipped. The error
// is non-nil only when the document itself is not well-formed XML.
func ParseArticles(data []byte, log *zap.Logger) ([]types.Article, error) {
	if log == nil {
		log = zap.NewNop()
	}
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing efetch XML: %w", err)
	}

	var articles []types.Article
	for i, n := range xmlquery.Find(doc, "//PubmedArticle") {
		a, err := parseArticle(n, log)
		if err != nil {
			log.Warn("skipping article", zap.Int("index", i), zap.Error(err))
			continue
		}
		articles = append(articles, a)
	}
	return articles, nil
}

// parseArticle converts one PubmedArticle element. A panic from a
// malformed element is turned into an error so the batch can continue.
func parseArticle(n *xmlquery.Node, log *zap.Logger) (a types.Article, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parsing article: %v", r)
		}
	}()

	pmid := text(xmlquery.FindOne(n, ".//PMID"))
	if pmid == "" {
		return a, fmt.Errorf("missing PMID")
	}
	article := xmlquery.FindOne(n, ".//Article")
	if article == nil {
		return a, fmt.Errorf("PMID %s: missing Article element", pmid)
	}

	a = types.Article{
		PMID:            pmid,
		Title:           text(xmlquery.FindOne(article, "ArticleTitle")),
		Abstract:        parseAbstract(article),
		Authors:         parseAuthors(article),
		Keywords:        texts(xmlquery.Find(n, ".//KeywordList/Keyword")),
		PublicationDate: parsePubDate(n, pmid, log),
		Journal:         optional(xmlquery.FindOne(article, ".//Journal/Title")),
	}

	for _, id := range xmlquery.Find(n, ".//ArticleIdList/ArticleId") {
		if id.SelectAttr("IdType") != "doi" {
			continue
		}
		if doi := text(id); doi != "" {
			a.DOI = types.String(doi)
			break
		}
	}

	return a, nil
}

// parseAbstract returns the text of a single AbstractText section, or the
// sections of a structured abstract joined by a space, each prefixed with
// "Label: " when labeled.
func parseAbstract(article *xmlquery.Node) string {
	sections := xmlquery.Find(article, ".//Abstract/AbstractText")
	switch len(sections) {
	case 0:
		return ""
	case 1:
		return text(sections[0])
	}

	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		if label := s.SelectAttr("Label"); label != "" {
			parts = append(parts, label+": "+text(s))
		} else {
			parts = append(parts, text(s))
		}
	}
	return strings.Join(parts, " ")
}

func parseAuthors(article *xmlquery.Node) []types.Author {
	var authors []types.Author
	for _, an := range xmlquery.Find(article, ".//AuthorList/Author") {
		last := text(xmlquery.FindOne(an, "LastName"))
		if last == "" {
			// Collective authors carry no LastName.
			continue
		}
		authors = append(authors, types.Author{
			LastName:     last,
			ForeName:     optional(xmlquery.FindOne(an, "ForeName")),
			Initials:     optional(xmlquery.FindOne(an, "Initials")),
			Affiliations: texts(xmlquery.Find(an, ".//Affiliation")),
		})
	}
	return authors
}

var monthAbbrev = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// parsePubDate reads PubDate Year/Month/Day. Month may be a three-letter
// name; Month and Day default to 1. A missing year or an invalid calendar
// date yields nil.
func parsePubDate(n *xmlquery.Node, pmid string, log *zap.Logger) *time.Time {
	pd := xmlquery.FindOne(n, ".//PubDate")
	if pd == nil {
		return nil
	}
	year := text(xmlquery.FindOne(pd, "Year"))
	month := text(xmlquery.FindOne(pd, "Month"))
	day := text(xmlquery.FindOne(pd, "Day"))

	if year == "" {
		log.Warn("no publication year", zap.String("pmid", pmid))
		return nil
	}
	if month == "" {
		month = "1"
	}
	if day == "" {
		day = "1"
	}
	if isAlpha(month) {
		if m, ok := monthAbbrev[strings.ToLower(month)]; ok {
			month = strconv.Itoa(m)
		} else {
			month = "1"
		}
	}

	raw := year + "-" + month + "-" + day
	t, err := time.Parse("2006-1-2", raw)
	if err != nil {
		log.Warn("invalid publication date", zap.String("pmid", pmid), zap.String("date", raw))
		return nil
	}
	return &t
}

func isAlpha(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return s != ""
}

// text returns the trimmed inner text of n, or "" for nil.
func text(n *xmlquery.Node) string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.InnerText())
}

// texts returns the non-empty texts of nodes in order.
func texts(nodes []*xmlquery.Node) []string {
	var out []string
	for _, n := range nodes {
		if t := text(n); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func optional(n *xmlquery.Node) *string {
	if t := text(n); t != "" {
		return types.String(t)
	}
	return nil
}
