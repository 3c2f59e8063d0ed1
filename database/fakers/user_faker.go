package fakers

import (
	"github.com/alirogz/goshop-partialpay/app/consts"
	"github.com/alirogz/goshop-partialpay/app/models"
	"github.com/bxcodec/faker/v3"
)

func UserFaker() (*models.User, error) {
	hashed, err := models.MakePassword(faker.Password())
	if err != nil {
		return nil, err
	}

	return &models.User{
		Name:     faker.Name(),
		Email:    faker.Email(),
		Password: hashed,
		Role:     consts.UserRoleCustomer,
	}, nil
}

// AdminFaker builds an admin with the given password. An empty password gets
// a random one, returned so the caller can hand it over once.
func AdminFaker(email, password string) (*models.User, string, error) {
	if password == "" {
		password = faker.Password()
	}

	user, err := UserFaker()
	if err != nil {
		return nil, "", err
	}
	hashed, err := models.MakePassword(password)
	if err != nil {
		return nil, "", err
	}

	user.Email = email
	user.Password = hashed
	user.Role = consts.UserRoleAdmin
	return user, password, nil
}
