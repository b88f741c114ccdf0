package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var notificationCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pancy_notifications_created",
	Help: "Number of in-app notifications created",
}, []string{"template"})

var emailErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "pancy_notification_email_errors",
	Help: "Number of notification emails that could not be sent",
})
