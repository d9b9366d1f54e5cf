package view

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/okian/gcpstatus/internal/domain/health"
	. "github.com/smartystreets/goconvey/convey"
)

func decode(body string) health.Map {
	m, err := health.Decode([]byte(body))
	if err != nil {
		panic(err)
	}
	return m
}

func TestBuildCard(t *testing.T) {
	Convey("Given a card for an absent record", t, func() {
		c := BuildCard(health.CloudSQL, nil)

		Convey("Then it renders as unknown", func() {
			So(c.Class, ShouldEqual, health.Unknown)
			So(c.Style, ShouldResemble, Style{Color: ColorUnknown, Icon: IconUnknown})
			So(c.StatusText, ShouldEqual, "Unknown")
			So(c.DisplayName, ShouldEqual, "Cloud SQL")
			So(c.DOMID, ShouldEqual, "card-cloud-sql")
			So(c.Latency, ShouldBeEmpty)
			So(c.Error, ShouldBeEmpty)
			So(c.Detail, ShouldBeNil)
		})
	})

	Convey("Given an unhealthy record with error and details", t, func() {
		m := decode(`{"firestore": {"status": "UNHEALTHY", "latency_ms": 88.5, "error": "deadline exceeded", "details": {"a": 1}}}`)
		c := BuildCard(health.Firestore, m.Get(health.Firestore))

		Convey("Then every part is rendered", func() {
			So(c.Class, ShouldEqual, health.Unhealthy)
			So(c.Style.Color, ShouldEqual, ColorUnhealthy)
			So(c.StatusText, ShouldEqual, "UNHEALTHY")
			So(c.Latency, ShouldEqual, "Latency: 89ms")
			So(c.Error, ShouldEqual, "deadline exceeded")
			So(c.Detail, ShouldNotBeNil)
			So(c.Detail.Pretty, ShouldEqual, "{\n  \"a\": 1\n}")
		})
	})

	Convey("Given a record with an unrecognised status", t, func() {
		m := decode(`{"document_ai": {"status": "degraded"}}`)
		c := BuildCard(health.DocumentAI, m.Get(health.DocumentAI))

		Convey("Then the raw status is shown with the cautionary style", func() {
			So(c.Class, ShouldEqual, health.Unknown)
			So(c.StatusText, ShouldEqual, "degraded")
			So(c.Style.Icon, ShouldEqual, IconUnknown)
		})
	})

	Convey("Given a zero latency", t, func() {
		m := decode(`{"cloud_storage": {"status": "healthy", "latency_ms": 0}}`)
		c := BuildCard(health.CloudStorage, m.Get(health.CloudStorage))

		Convey("Then no latency line is rendered", func() {
			So(c.Latency, ShouldBeEmpty)
		})
	})
}

func TestBuildGrid(t *testing.T) {
	Convey("Given a response reporting only cloud_storage", t, func() {
		cards := BuildGrid(decode(`{"cloud_storage": {"status": "Healthy", "latency_ms": 42}}`))

		Convey("Then seven cards are rendered, six unknown", func() {
			So(len(cards), ShouldEqual, 7)
			for _, c := range cards {
				if c.ID == health.CloudStorage {
					So(c.Class, ShouldEqual, health.Healthy)
					So(c.Latency, ShouldEqual, "Latency: 42ms")
					continue
				}
				So(c.Class, ShouldEqual, health.Unknown)
			}
			So(Summarize(cards), ShouldResemble, Summary{Healthy: 1, Unknown: 6})
		})
	})

	Convey("Given a nil map", t, func() {
		cards := BuildGrid(nil)

		Convey("Then seven unknown cards are rendered in order", func() {
			So(len(cards), ShouldEqual, 7)
			So(cards[0].ID, ShouldEqual, health.VertexAIGemini)
			So(cards[6].ID, ShouldEqual, health.SecretManager)
			So(Summarize(cards).Unknown, ShouldEqual, 7)
			So(Summarize(cards).Total(), ShouldEqual, 7)
		})

		Convey("Then rows follow the service groups", func() {
			rows := Rows(cards)
			So(len(rows), ShouldEqual, 3)
			So(rows[0].Title, ShouldEqual, health.GroupAI)
			So(len(rows[0].Cards), ShouldEqual, 3)
			So(len(rows[1].Cards), ShouldEqual, 3)
			So(len(rows[2].Cards), ShouldEqual, 1)
		})
	})
}

func TestNewDetail(t *testing.T) {
	Convey("Given a small payload", t, func() {
		d := NewDetail(json.RawMessage(`{"buckets":["a"]}`))

		Convey("Then it is not clipped", func() {
			So(d.Clipped, ShouldBeFalse)
			So(d.Preview, ShouldEqual, d.Pretty)
			So(d.Pretty, ShouldEqual, "{\n  \"buckets\": [\n    \"a\"\n  ]\n}")
		})
	})

	Convey("Given a payload longer than the preview", t, func() {
		d := NewDetail(json.RawMessage(`{"a":1,"b":2,"c":3,"d":4,"e":5,"f":6,"g":7}`))

		Convey("Then the preview is clipped with an ellipsis", func() {
			So(d.Clipped, ShouldBeTrue)
			lines := strings.Split(d.Preview, "\n")
			So(len(lines), ShouldEqual, PreviewLines+1)
			So(lines[PreviewLines], ShouldEqual, "…")
			So(d.Pretty, ShouldContainSubstring, `"g": 7`)
		})
	})

	Convey("Given a scalar payload", t, func() {
		d := NewDetail(json.RawMessage(`true`))

		Convey("Then it is shown as-is", func() {
			So(d.Pretty, ShouldEqual, "true")
			So(d.Clipped, ShouldBeFalse)
		})
	})
}
