package main

import (
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"courseboard-backend/internal/database"
	"courseboard-backend/internal/model"
)

// Admin tool: grant or change a user's role in a course. Enrollment is
// normally owned by the course platform; this covers manual fixes.
//
//	go run ./cmd/grant_role -course 1 -user 42 -role teaching_assistant
func main() {
	courseID := flag.Int64("course", 0, "course id")
	userID := flag.Int64("user", 0, "user id")
	roleName := flag.String("role", "", "instructor | teaching_assistant | student")
	remove := flag.Bool("remove", false, "remove the membership instead")
	flag.Parse()

	if *courseID == 0 || *userID == 0 {
		log.Fatal("both -course and -user are required")
	}

	role := model.MembershipRole(*roleName)
	if !*remove {
		switch role {
		case model.RoleInstructor, model.RoleTeachingAssistant, model.RoleStudent:
		default:
			log.Fatalf("invalid role %q", *roleName)
		}
	}

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	db, err := database.ConnectDB()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	err = db.Transaction(func(tx *gorm.DB) error {
		var user model.User
		if err := tx.First(&user, *userID).Error; err != nil {
			return err
		}
		var course model.Course
		if err := tx.First(&course, *courseID).Error; err != nil {
			return err
		}

		if *remove {
			result := tx.Where("course_id = ? AND user_id = ?", *courseID, *userID).
				Delete(&model.CourseMembership{})
			if result.Error != nil {
				return result.Error
			}
			log.Printf("Removed user %d (%s) from course %d (%s), %d row(s)",
				user.ID, user.Nickname, course.ID, course.Title, result.RowsAffected)
			return nil
		}

		var membership model.CourseMembership
		err := tx.Where("course_id = ? AND user_id = ?", *courseID, *userID).
			First(&membership).Error
		switch {
		case err == nil:
			if membership.Role == role {
				log.Printf("User %d already has role %s in course %d, nothing to do",
					user.ID, role, course.ID)
				return nil
			}
			old := membership.Role
			membership.Role = role
			if err := tx.Save(&membership).Error; err != nil {
				return err
			}
			log.Printf("Changed user %d in course %d: %s -> %s", user.ID, course.ID, old, role)
			return nil
		case err == gorm.ErrRecordNotFound:
			membership = model.CourseMembership{
				CourseID: *courseID,
				UserID:   *userID,
				Role:     role,
				JoinedAt: time.Now(),
			}
			if err := tx.Create(&membership).Error; err != nil {
				return err
			}
			log.Printf("Enrolled user %d (%s) in course %d (%s) as %s",
				user.ID, user.Nickname, course.ID, course.Title, role)
			return nil
		default:
			return err
		}
	})
	if err != nil {
		log.Fatalf("Failed: %v", err)
	}
}
