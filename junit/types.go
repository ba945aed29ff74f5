package junit

import (
	"encoding/xml"
	"strconv"

	"github.com/bitrise-steplib/steps-junit-reporter/models"
)

// Seconds is a duration in seconds, rendered as a plain decimal.
// encoding/xml would print large float64 values in exponent form.
type Seconds float64

// MarshalXMLAttr ...
func (s Seconds) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	return xml.Attr{Name: name, Value: strconv.FormatFloat(float64(s), 'f', 3, 64)}, nil
}

// UnmarshalXMLAttr ...
func (s *Seconds) UnmarshalXMLAttr(attr xml.Attr) error {
	v, err := strconv.ParseFloat(attr.Value, 64)
	if err != nil {
		return err
	}
	*s = Seconds(v)
	return nil
}

// Report defines a JUnit XML report
type Report struct {
	XMLName    xml.Name    `xml:"testsuites"`
	Tests      int         `xml:"tests,attr"`
	Failures   int         `xml:"failures,attr"`
	Errors     int         `xml:"errors,attr"`
	Skipped    int         `xml:"skipped,attr"`
	Time       Seconds     `xml:"time,attr"`
	Testsuites []Testsuite `xml:"testsuite"`
}

// Testsuite defines a JUnit testsuite
type Testsuite struct {
	XMLName   xml.Name   `xml:"testsuite"`
	Name      string     `xml:"name,attr"`
	Timestamp string     `xml:"timestamp,attr"`
	Tests     int        `xml:"tests,attr"`
	Failures  int        `xml:"failures,attr"`
	Errors    int        `xml:"errors,attr"`
	Skipped   int        `xml:"skipped,attr"`
	Time      Seconds    `xml:"time,attr"`
	Testcases []Testcase `xml:"testcase"`
}

// Testcase defines a JUnit testcase
type Testcase struct {
	XMLName   xml.Name `xml:"testcase"`
	Name      string   `xml:"name,attr"`
	ClassName string   `xml:"classname,attr"`
	File      string   `xml:"file,attr"`
	Time      Seconds  `xml:"time,attr"`
	Failure   *Failure `xml:"failure,omitempty"`
	Skipped   *Skipped `xml:"skipped,omitempty"`

	// Status keeps the runner status; the XML only tells failure kinds apart by Failure.Type.
	Status models.Status `xml:"-"`
}

// Failure defines a JUnit failure
type Failure struct {
	XMLName    xml.Name `xml:"failure"`
	Message    string   `xml:"message,attr"`
	Type       string   `xml:"type,attr"`
	Stacktrace string   `xml:",chardata"`
}

// Skipped defines a JUnit skipped marker
type Skipped struct {
	XMLName xml.Name `xml:"skipped"`
	Message string   `xml:"message,attr,omitempty"`
}
