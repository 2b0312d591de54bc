package client

import (
	"net/url"

	"tourbook/pkg/model"
)

// BookingClient talks to the tourbook HTTP API as one caller. The caller
// identity is sent with every request.
type BookingClient struct {
	httpClient *HttpClient
}

func NewBookingClient(baseURL string) *BookingClient {
	return &BookingClient{
		httpClient: NewHttpClient(baseURL),
	}
}

// As returns a client that identifies as the given manager or agent.
func (c *BookingClient) As(user model.UserRef) *BookingClient {
	return c.withHeaders(map[string]string{
		"X-User-ID":   user.ID,
		"X-User-Type": string(user.Type),
	})
}

// AsVisitor returns a client that identifies by caller phone.
func (c *BookingClient) AsVisitor(phone string) *BookingClient {
	return c.withHeaders(map[string]string{"X-Caller-Phone": phone})
}

func (c *BookingClient) withHeaders(headers map[string]string) *BookingClient {
	hc := *c.httpClient
	hc.Headers = make(map[string]string, len(headers))
	for k, v := range headers {
		hc.Headers[k] = v
	}
	return &BookingClient{httpClient: &hc}
}

func (c *BookingClient) Create(body any) (*Response, error) {
	return c.httpClient.POST("/api/v1/bookings", body)
}

func (c *BookingClient) CreateRaw(rawBody []byte) (*Response, error) {
	return c.httpClient.POSTRaw("/api/v1/bookings", rawBody)
}

func (c *BookingClient) Validate(body any) (*Response, error) {
	return c.httpClient.POST("/api/v1/bookings/validate", body)
}

func (c *BookingClient) CreateManual(body any) (*Response, error) {
	return c.httpClient.POST("/api/v1/bookings/manual", body)
}

func (c *BookingClient) GetByID(id string) (*Response, error) {
	return c.httpClient.GET(bookingPath(id, ""))
}

func (c *BookingClient) Audit(id string) (*Response, error) {
	return c.httpClient.GET(bookingPath(id, "/audit"))
}

func (c *BookingClient) Approve(id string, body any) (*Response, error) {
	return c.httpClient.POST(bookingPath(id, "/approve"), body)
}

func (c *BookingClient) Deny(id string, body any) (*Response, error) {
	return c.httpClient.POST(bookingPath(id, "/deny"), body)
}

func (c *BookingClient) Reschedule(id string, body any) (*Response, error) {
	return c.httpClient.POST(bookingPath(id, "/reschedule"), body)
}

func (c *BookingClient) Cancel(id string, body any) (*Response, error) {
	return c.httpClient.POST(bookingPath(id, "/cancel"), body)
}

func (c *BookingClient) Confirm(id string, body any) (*Response, error) {
	return c.httpClient.POST(bookingPath(id, "/confirm"), body)
}

func (c *BookingClient) ByVisitor(phone, name, status string) (*Response, error) {
	q := url.Values{}
	if phone != "" {
		q.Set("phone", phone)
	}
	if name != "" {
		q.Set("name", name)
	}
	if status != "" {
		q.Set("status", status)
	}
	return c.httpClient.GET("/api/v1/bookings/visitor?" + q.Encode())
}

func (c *BookingClient) List(propertyID string) (*Response, error) {
	path := "/api/v1/bookings"
	if propertyID != "" {
		path += "?property_id=" + url.QueryEscape(propertyID)
	}
	return c.httpClient.GET(path)
}

func (c *BookingClient) CancelByVisitor(body any) (*Response, error) {
	return c.httpClient.POST("/api/v1/bookings/visitor/cancel", body)
}

func (c *BookingClient) Availability(user model.UserRef, from, to string) (*Response, error) {
	q := url.Values{}
	q.Set("user_id", user.ID)
	q.Set("user_type", string(user.Type))
	q.Set("from", from)
	q.Set("to", to)
	return c.httpClient.GET("/api/v1/availability?" + q.Encode())
}

func (c *BookingClient) UpsertSlot(body any) (*Response, error) {
	return c.httpClient.PUT("/api/v1/availability/slots", body)
}

func (c *BookingClient) DeleteSlot(id string) (*Response, error) {
	return c.httpClient.DELETE("/api/v1/availability/slots/" + url.PathEscape(id))
}

func (c *BookingClient) DayOff(body any) (*Response, error) {
	return c.httpClient.POST("/api/v1/availability/days-off", body)
}

func (c *BookingClient) Preferences(user model.UserRef) (*Response, error) {
	q := url.Values{}
	q.Set("user_id", user.ID)
	q.Set("user_type", string(user.Type))
	return c.httpClient.GET("/api/v1/preferences?" + q.Encode())
}

func (c *BookingClient) UpdatePreferences(body any) (*Response, error) {
	return c.httpClient.PUT("/api/v1/preferences", body)
}

func (c *BookingClient) Approver(propertyID string) (*Response, error) {
	return c.httpClient.GET(propertyPath(propertyID, "/approver"))
}

func (c *BookingClient) Reassign(propertyID string, body any) (*Response, error) {
	return c.httpClient.POST(propertyPath(propertyID, "/assignments"), body)
}

func (c *BookingClient) AssignmentHistory(propertyID string) (*Response, error) {
	return c.httpClient.GET(propertyPath(propertyID, "/assignments"))
}

func (c *BookingClient) Tool(name string, body any) (*Response, error) {
	return c.httpClient.POST("/api/v1/tools/"+url.PathEscape(name), body)
}

func (c *BookingClient) DecodeBooking(resp *Response) (*model.Booking, error) {
	var booking model.Booking
	if err := resp.DecodeData(&booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

func (c *BookingClient) DecodeBookings(resp *Response) ([]*model.Booking, error) {
	var bookings []*model.Booking
	if err := resp.DecodeData(&bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

func bookingPath(id, suffix string) string {
	return "/api/v1/bookings/id/" + url.PathEscape(id) + suffix
}

func propertyPath(id, suffix string) string {
	return "/api/v1/properties/" + url.PathEscape(id) + suffix
}
