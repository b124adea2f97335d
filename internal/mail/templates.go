package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/jafarshop/storefront/internal/domain"
)

//go:embed templates/*.html
var templateFiles embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"money": func(v interface{ StringFixed(int32) string }) string { return v.StringFixed(2) },
}).ParseFS(templateFiles, "templates/*.html"))

// Composer renders the storefront's transactional emails
type Composer struct {
	StoreName string
	ClientURL string
}

func (c Composer) render(name string, data map[string]interface{}) (string, error) {
	data["StoreName"] = c.StoreName
	data["ClientURL"] = c.ClientURL

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}

// Welcome is sent after registration
func (c Composer) Welcome(user *domain.User) (Message, error) {
	html, err := c.render("welcome.html", map[string]interface{}{"User": user})
	if err != nil {
		return Message{}, err
	}
	return Message{To: user.Email, Subject: "Welcome to " + c.StoreName, HTML: html}, nil
}

// OrderConfirmation is sent once an order is paid
func (c Composer) OrderConfirmation(user *domain.User, order *domain.Order) (Message, error) {
	html, err := c.render("order_confirmation.html", map[string]interface{}{"User": user, "Order": order})
	if err != nil {
		return Message{}, err
	}
	return Message{To: user.Email, Subject: "Order confirmed: " + order.OrderNumber, HTML: html}, nil
}

// OrderStatus is sent when the back-office moves an order
func (c Composer) OrderStatus(user *domain.User, order *domain.Order) (Message, error) {
	html, err := c.render("order_status.html", map[string]interface{}{"User": user, "Order": order})
	if err != nil {
		return Message{}, err
	}
	return Message{To: user.Email, Subject: fmt.Sprintf("Order %s is %s", order.OrderNumber, order.Status), HTML: html}, nil
}

// MessageReply answers a contact-form submission
func (c Composer) MessageReply(msg *domain.Message) (Message, error) {
	html, err := c.render("message_reply.html", map[string]interface{}{"Message": msg})
	if err != nil {
		return Message{}, err
	}
	return Message{To: msg.Email, Subject: "Re: " + msg.Subject, HTML: html}, nil
}
