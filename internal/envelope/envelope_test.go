package envelope_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/garnizeh/contactdesk/internal/envelope"
	"github.com/garnizeh/contactdesk/pkg/models"
)

const records = `[
	{"id":1,"name":"Ana","email":"ana@example.com","service":"Roofing","message":"hi","created_at":"2024-01-01"},
	{"id":2,"name":"Bo","email":"bo@example.com","company":"Bo Ltd","phone":"555-0101","service":"Basement","message":"leak","created_at":"2024-02-01 10:30:00"}
]`

func TestContacts_AllShapesNormalizeIdentically(t *testing.T) {
	ctx := context.Background()
	c := envelope.MustClassifier()

	cases := []struct {
		name  string
		body  string
		shape envelope.Shape
	}{
		{name: "Paginated", body: `{"success":true,"data":{"current_page":1,"data":` + records + `,"total":2}}`, shape: envelope.ShapePaginated},
		{name: "Flat", body: `{"success":true,"data":` + records + `}`, shape: envelope.ShapeFlat},
		{name: "Bare", body: records, shape: envelope.ShapeBare},
	}

	var want []models.Contact
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, shape, err := c.Contacts(ctx, []byte(tc.body))
			if err != nil {
				t.Fatalf("Contacts error: %v", err)
			}
			if shape != tc.shape {
				t.Fatalf("expected shape %s, got %s", tc.shape, shape)
			}
			if len(got) != 2 || got[0].ID != 1 || got[1].ID != 2 {
				t.Fatalf("unexpected records: %#v", got)
			}
			if want == nil {
				want = got
				return
			}
			if !reflect.DeepEqual(want, got) {
				t.Fatalf("shape %s normalized differently:\nwant %#v\ngot  %#v", tc.shape, want, got)
			}
		})
	}
}

func TestContacts_OptionalFields(t *testing.T) {
	got, _, err := envelope.MustClassifier().Contacts(context.Background(), []byte(records))
	if err != nil {
		t.Fatalf("Contacts error: %v", err)
	}
	if got[0].Company != nil || got[0].Phone != nil {
		t.Fatalf("expected nil optional fields on first record: %#v", got[0])
	}
	if got[1].Company == nil || *got[1].Company != "Bo Ltd" {
		t.Fatalf("expected company on second record: %#v", got[1])
	}
	if got[1].CreatedAt.Month() != 2 || got[1].CreatedAt.Hour() != 10 {
		t.Fatalf("unexpected created_at: %v", got[1].CreatedAt)
	}
}

func TestContacts_UnexpectedShapes(t *testing.T) {
	bodies := map[string]string{
		"EmptyObject":    `{}`,
		"NullData":       `{"success":true,"data":null}`,
		"StringData":     `{"success":true,"data":"nope"}`,
		"ObjectNoInner":  `{"success":true,"data":{"items":[]}}`,
		"NumberTopLevel": `42`,
	}
	c := envelope.MustClassifier()
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			_, shape, err := c.Contacts(context.Background(), []byte(body))
			if !errors.Is(err, envelope.ErrUnexpectedFormat) {
				t.Fatalf("expected ErrUnexpectedFormat, got %v", err)
			}
			if shape != envelope.ShapeUnknown {
				t.Fatalf("expected unknown shape, got %s", shape)
			}
		})
	}
}

func TestContacts_EmptyCollection(t *testing.T) {
	got, shape, err := envelope.MustClassifier().Contacts(context.Background(), []byte(`{"success":true,"data":[]}`))
	if err != nil {
		t.Fatalf("Contacts error: %v", err)
	}
	if shape != envelope.ShapeFlat || got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil flat result, got %s %#v", shape, got)
	}
}

func TestSingle(t *testing.T) {
	c := envelope.MustClassifier()
	ctx := context.Background()

	rec, err := c.Single(ctx, []byte(`{"success":true,"data":{"id":9,"name":"Cy","email":"cy@example.com","message":"m","service":"Roofing"}}`))
	if err != nil || rec.ID != 9 {
		t.Fatalf("wrapped detail: rec=%#v err=%v", rec, err)
	}

	rec, err = c.Single(ctx, []byte(`{"id":10,"name":"Di"}`))
	if err != nil || rec.ID != 10 {
		t.Fatalf("bare detail: rec=%#v err=%v", rec, err)
	}

	if _, err := c.Single(ctx, []byte(`{"success":false,"message":"not found"}`)); !errors.Is(err, envelope.ErrUnexpectedFormat) {
		t.Fatalf("expected ErrUnexpectedFormat, got %v", err)
	}
}

func TestCSV(t *testing.T) {
	c := envelope.MustClassifier()
	ctx := context.Background()

	csv, err := c.CSV(ctx, []byte(`{"success":true,"data":"id,name\n1,Ana\n"}`))
	if err != nil {
		t.Fatalf("CSV error: %v", err)
	}
	if csv != "id,name\n1,Ana\n" {
		t.Fatalf("unexpected csv %q", csv)
	}

	for _, body := range []string{`{"success":false,"data":"x"}`, `{"success":true,"data":[]}`, `"id,name"`} {
		if _, err := c.CSV(ctx, []byte(body)); !errors.Is(err, envelope.ErrUnexpectedFormat) {
			t.Fatalf("body %s: expected ErrUnexpectedFormat, got %v", body, err)
		}
	}
}

func TestStatus(t *testing.T) {
	cases := []struct {
		body    string
		wantOK  bool
		wantMsg string
	}{
		{body: `{}`, wantOK: true},
		{body: `{"success":true}`, wantOK: true},
		{body: `{"success":null}`, wantOK: true},
		{body: `{"success":false,"message":"cannot delete"}`, wantOK: false, wantMsg: "cannot delete"},
		{body: `{"success":false}`, wantOK: false},
		{body: `{"success":"yes"}`, wantOK: false},
		{body: `[]`, wantOK: true},
		{body: `{"success":false,"message":["Contact is locked"]}`, wantOK: false},
		{body: `{"success":false,"message":{"id":["bad"]}}`, wantOK: false},
		{body: `{"success":false,"message":42}`, wantOK: false},
		{body: `{"success":true,"message":["deleted"]}`, wantOK: true},
		{body: `{"message":{"info":"queued"}}`, wantOK: true},
	}
	for _, tc := range cases {
		got := envelope.Status([]byte(tc.body))
		if got.OK != tc.wantOK || got.Message != tc.wantMsg {
			t.Fatalf("Status(%s) = %#v, want ok=%v msg=%q", tc.body, got, tc.wantOK, tc.wantMsg)
		}
	}
}
