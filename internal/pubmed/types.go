// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pubmed provides a client for the NCBI PubMed E-utilities API.
// It backs three pipeline contracts: the crawl stage's listing source
// (esearch + efetch), the per-record detail fetch (abstract, page keywords,
// author affiliations) and the batched MeSH term fetch.
//
// The E-utilities API documentation is available at:
// https://www.ncbi.nlm.nih.gov/books/NBK25499/
package pubmed

// eSearchResult is the esearch.fcgi response: the total result count and
// one page of PMIDs.
type eSearchResult struct {
	Count    int    `xml:"Count"`
	RetMax   int    `xml:"RetMax"`
	RetStart int    `xml:"RetStart"`
	IDList   idList `xml:"IdList"`
}

type idList struct {
	IDs []string `xml:"Id"`
}

// articleSet is the efetch.fcgi response for db=pubmed, retmode=xml.
type articleSet struct {
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	MedlineCitation medlineCitation `xml:"MedlineCitation"`
}

type medlineCitation struct {
	PMID            string           `xml:"PMID"`
	Article         articleData      `xml:"Article"`
	MeshHeadingList *meshHeadingList `xml:"MeshHeadingList"`
	KeywordList     *keywordList     `xml:"KeywordList"`
}

type articleData struct {
	Journal      journal     `xml:"Journal"`
	ArticleTitle string      `xml:"ArticleTitle"`
	Abstract     *abstract   `xml:"Abstract"`
	AuthorList   *authorList `xml:"AuthorList"`
}

type journal struct {
	Title           string       `xml:"Title"`
	ISOAbbreviation string       `xml:"ISOAbbreviation"`
	JournalIssue    journalIssue `xml:"JournalIssue"`
}

type journalIssue struct {
	PubDate pubDate `xml:"PubDate"`
}

// pubDate is partial by design: Year always, Month sometimes, and some
// records carry only a free-form MedlineDate like "2015 Jan-Feb".
type pubDate struct {
	Year        string `xml:"Year"`
	Month       string `xml:"Month"`
	MedlineDate string `xml:"MedlineDate"`
}

type abstract struct {
	Sections []abstractSection `xml:"AbstractText"`
}

type abstractSection struct {
	Label string `xml:"Label,attr"`
	Text  string `xml:",chardata"`
}

type authorList struct {
	Authors []authorData `xml:"Author"`
}

type authorData struct {
	LastName       string            `xml:"LastName"`
	ForeName       string            `xml:"ForeName"`
	Initials       string            `xml:"Initials"`
	CollectiveName string            `xml:"CollectiveName"`
	Affiliations   []affiliationInfo `xml:"AffiliationInfo"`
}

type affiliationInfo struct {
	Affiliation string `xml:"Affiliation"`
}

type keywordList struct {
	Keywords []string `xml:"Keyword"`
}

type meshHeadingList struct {
	Headings []meshHeading `xml:"MeshHeading"`
}

type meshHeading struct {
	Descriptor descriptorName `xml:"DescriptorName"`
}

type descriptorName struct {
	MajorTopicYN string `xml:"MajorTopicYN,attr"`
	Name         string `xml:",chardata"`
}
